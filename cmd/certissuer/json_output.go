package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout. HTML escaping
// is off so archive links keep their literal "&".
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON under --json and calls human otherwise.
func emit(cmd *cobra.Command, ctx *commandContext, v any, human func(out io.Writer, colorize bool)) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, v)
	}
	out := cmd.OutOrStdout()
	human(out, shouldColorize(out))
	return nil
}
