// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/canonical/beanmeta"
)

// NewCheckCommand returns the command validating mapping documents.
func NewCheckCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Check mapping documents",
		Long: `Load each mapping document and parse every SQL snippet it declares.
The file format is taken from the extension: yaml, json and toml are supported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				n, err := checkFile(cmd.OutOrStdout(), path, verbose)
				if err != nil {
					return err
				}
				failed += n
			}
			if failed > 0 {
				return errors.Errorf("%d malformed snippets", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list the parameters of every snippet")
	return cmd
}

// checkFile reports on the snippets of the mapping document at path and
// returns how many of them are malformed.
func checkFile(out io.Writer, path string, verbose bool) (int, error) {
	m, err := beanmeta.LoadConfigMapping(path)
	if err != nil {
		return 0, err
	}

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	failed := 0
	report := func(what string, raw string) {
		if strings.TrimSpace(raw) == "" {
			return
		}
		s, err := beanmeta.ParseSnippet(strings.TrimSpace(raw))
		if err != nil {
			failed++
			red.Fprintf(out, "  ✗ %s: %v\n", what, err)
			return
		}
		if !verbose {
			return
		}
		fmt.Fprintf(out, "  %s %s: %s\n", green.Sprint("✓"), what, s.SQL)
		for _, p := range s.Params {
			kind := "bound"
			if p.Spliced {
				kind = "spliced"
			}
			line := fmt.Sprintf("      %s %s", p.Token, kind)
			if p.Default != "" {
				line += " default " + p.Default
			}
			cyan.Fprintln(out, line)
		}
	}

	doc := m.Document()
	for _, bean := range doc.Beans {
		bold.Fprintln(out, bean.Type)
		report("tables", bean.Tables)
		report("join", bean.Join)
		report("groupBy", bean.GroupBy)
		for _, f := range bean.Fields {
			report("field "+f.Name, f.SQL)
		}
	}
	if failed == 0 {
		green.Fprintf(out, "%s: %d beans ok\n", path, len(doc.Beans))
	} else {
		red.Fprintf(out, "%s: %d malformed snippets\n", path, failed)
	}
	return failed, nil
}
