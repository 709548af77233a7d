// Package github adapts the GitHub traffic API into the archiver's record
// shape.
package github

import (
	"context"

	gh "github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
)

// NewClient creates an authenticated GitHub client using the provided
// token. Tokens are per-repository, so the fetcher builds a client per
// fetch rather than holding one.
func NewClient(ctx context.Context, token string) *gh.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	return gh.NewClient(tc)
}
