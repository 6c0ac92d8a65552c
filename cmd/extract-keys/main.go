// Command extract-keys scans a saved HTML page for NFe access keys and writes
// the unique ones, in page order, to chaves_de_acesso.txt.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"frota/internal/keys"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, keys.DefaultOutputFile))
}

func run(args []string, stdout io.Writer, output string) int {
	if len(args) != 1 {
		fmt.Fprintln(stdout, "Usage: extract-keys <path_to_html_file>")
		return 1
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stdout, "error: file not found at '%s'\n", args[0])
		} else {
			fmt.Fprintf(stdout, "error: reading '%s': %v\n", args[0], err)
		}
		return 1
	}

	found := keys.Extract(content)
	fmt.Fprintf(stdout, "info: found %d total occurrences, removed %d duplicates.\n",
		found.Report.Total, found.Report.Removed)

	if len(found.Keys) == 0 {
		fmt.Fprintln(stdout, "info: no keys were found to save.")
		return 0
	}
	if err := keys.WriteFile(output, found.Keys); err != nil {
		fmt.Fprintf(stdout, "error: failed to write to file %s: %v\n", output, err)
		return 1
	}
	fmt.Fprintf(stdout, "info: saved %d unique keys to %s\n", len(found.Keys), output)
	return 0
}
