package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/urfave/cli/v2"

	"github.com/hassan/localopt/internal/optimizer"
)

func listPasses(c *cli.Context) error {
	defaults := make(map[string]int)
	for n, name := range optimizer.DefaultPassNames {
		defaults[name] = n + 1
	}

	table := tablewriter.NewWriter(c.App.Writer)
	table.SetHeader([]string{"Pass", "Default order"})
	for _, name := range optimizer.PassNames() {
		order := "-"
		if n, ok := defaults[name]; ok {
			order = fmt.Sprint(n)
		}
		table.Append([]string{name, order})
	}
	table.Render()
	return nil
}

func printStats(w io.Writer, stats *optimizer.Stats, runs int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Counter", "Value"})
	table.AppendBulk(stats.Rows())
	table.SetFooter([]string{"Pipeline runs", fmt.Sprint(runs)})
	table.Render()
}

// printDiff writes a unified diff of the module text, colored when the
// terminal supports it.
func printDiff(w io.Writer, name, before, after string) error {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name,
		ToFile:   name + " (optimized)",
		Context:  3,
	})
	if err != nil {
		return err
	}
	if text == "" {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}

	var (
		header  = color.New(color.Bold)
		hunk    = color.New(color.FgCyan)
		removed = color.New(color.FgRed)
		added   = color.New(color.FgGreen)
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			_, err = header.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			_, err = hunk.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			_, err = removed.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			_, err = added.Fprint(w, line)
		default:
			_, err = io.WriteString(w, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
