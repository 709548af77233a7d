package cmd

import (
	"fmt"
	"strings"

	"github.com/inovacc/trafficr/internal/texinline"
	"github.com/spf13/cobra"
)

var texCmd = &cobra.Command{
	Use:   "tex <main.tex> <merged.tex>",
	Short: "Flatten a LaTeX project into a single file",
	Long: `Merge a LaTeX project into one file by recursively replacing every
\input{...} command with the contents of the referenced file.

Run from anywhere; referenced files are resolved relative to the file
that inputs them. Commented-out \input commands are left as-is. Make
sure the project compiles before flattening it.

Examples:
  trafficr tex paper.tex merged_paper.tex`,
	Args: cobra.ExactArgs(2),
	RunE: runTex,
}

func init() {
	rootCmd.AddCommand(texCmd)
}

func runTex(cmd *cobra.Command, args []string) error {
	_ = cmd

	input, output := args[0], args[1]

	if !strings.HasSuffix(input, ".tex") {
		return fmt.Errorf("input must be a .tex file: %s", input)
	}

	if !strings.HasSuffix(output, ".tex") {
		return fmt.Errorf("output must be a .tex file: %s", output)
	}

	if err := texinline.Inline(input, output); err != nil {
		return err
	}

	fmt.Printf("Merged %s into %s\n", input, output)

	return nil
}
