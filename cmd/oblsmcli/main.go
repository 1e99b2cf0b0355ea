// Command oblsmcli is an interactive client for an oblsm database:
// open a directory, run set/get/delete/scan commands against it, and
// inspect its SSTable layout with dump.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:   "oblsmcli",
		Short: "Interactive client for an oblsm key-value database",
		RunE: func(cmd *cobra.Command, args []string) error {
			code := repl(bufio.NewReader(os.Stdin), os.Stdout, verbose)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "print full SSTable structs in dump")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
