package cmd

import (
	"testing"

	"github.com/inovacc/trafficr/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := GetRootCmd()
	require.Equal(t, application.AppName, root.Name())

	for _, name := range []string{"start", "status", "config", "service", "tex"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}
