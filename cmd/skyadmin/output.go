package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	adminclient "github.com/skykeenentreprise/admin-client"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// render prints the response payload in the selected format. Bodyless
// responses print msg instead.
func (a *app) render(cmd *cobra.Command, resp *adminclient.Response, msg string) error {
	out := cmd.OutOrStdout()
	if len(resp.Data) == 0 {
		if msg == "" {
			msg = "ok"
		}
		_, err := successColor.Fprintln(out, msg)
		return err
	}

	var payload any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		// not JSON, print verbatim
		_, werr := out.Write(append(resp.Data, '\n'))
		return werr
	}
	return writePayload(out, a.output, payload)
}

func writePayload(w io.Writer, format string, payload any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(payload); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func printError(w io.Writer, err error) {
	_, _ = errorColor.Fprintln(w, "error: "+describeError(err))
}
