// Command viewfinderctl maintains the content the API server serves: it
// imports scholarship sheets, validates catalogs and issues admin tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds a fresh command tree so tests never share flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "viewfinderctl",
		Short: "Maintenance tool for the Viewfinder portfolio API",
		Long: `viewfinderctl prepares the content files the API server loads at startup.

Available commands:
  scholarships import - Convert a sheet export into scholarships.json
  catalog validate    - Check a catalog file before deploying it
  token issue         - Mint an admin token for the /api/admin routes`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newScholarshipsCmd(), newCatalogCmd(), newTokenCmd())
	return root
}
