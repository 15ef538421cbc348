package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatTypesText lists types as aligned columns.
func formatTypesText(w io.Writer, types []CLIType) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tUNIT\tBASE\tFILE\tDEPENDS ON")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.FullName, t.Unit, t.BaseType, t.File, strings.Join(t.Dependencies, ", "))
	}
	tw.Flush()
}

// formatTypeDetailText prints one type with its members, grouped the way a
// class box shows them.
func formatTypeDetailText(w io.Writer, t CLIType) {
	fmt.Fprintf(w, "%s : %s\n", t.FullName, t.BaseType)
	fmt.Fprintf(w, "  %s (%s)\n", t.File, t.Unit)
	for _, section := range []struct {
		title   string
		members []string
	}{
		{"Fields", t.Fields},
		{"Methods", t.Methods},
		{"Properties", t.Properties},
	} {
		if len(section.members) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:\n", section.title)
		for _, m := range section.members {
			fmt.Fprintf(w, "    %s\n", m)
		}
	}
	if len(t.Usages) > 0 {
		fmt.Fprintln(w, "  Used in:")
		formatUsagesText(w, "    ", t.Usages)
	}
}

func formatUsagesText(w io.Writer, indent string, usages []CLIUsage) {
	for _, u := range usages {
		fmt.Fprintf(w, "%s%s\n", indent, u.Scene)
		for _, n := range u.Nodes {
			fmt.Fprintf(w, "%s  %s\n", indent, n)
		}
	}
}

// formatEdgesText lists dependency edges as aligned columns.
func formatEdgesText(w io.Writer, edges []CLIEdge) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tTARGET")
	for _, e := range edges {
		fmt.Fprintf(tw, "%s\t%s\n", e.Source, e.Target)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIType:
		formatTypesText(w, v)
	case CLIType:
		formatTypeDetailText(w, v)
	case []CLITypeUsages:
		for _, tu := range v {
			if len(tu.Usages) == 0 {
				continue
			}
			fmt.Fprintln(w, tu.Type)
			formatUsagesText(w, "  ", tu.Usages)
		}
	case CLITypeUsages:
		if len(v.Usages) == 0 {
			fmt.Fprintf(w, "%s is not used in any scene\n", v.Type)
			break
		}
		formatUsagesText(w, "", v.Usages)
	case []CLIEdge:
		formatEdgesText(w, v)
	case CLILocate:
		if v.Found {
			fmt.Fprintf(w, "%s: %s\n", v.Scene, v.Path)
		} else {
			fmt.Fprintf(w, "%s: %s not found\n", v.Scene, v.Path)
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "\n%d warning(s)\n", len(result.Warnings))
	}
	return nil
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, result)
}

func writeResult(w io.Writer, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
