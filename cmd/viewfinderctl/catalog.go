package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onnwee/viewfinder/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with portfolio catalog files",
	}
	cmd.AddCommand(newCatalogValidateCmd())
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog file the way the server loads it",
		Long: `Decode a catalog YAML file with unknown keys rejected and run every
consistency check the server runs on load. All problems are reported at once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open catalog: %w", err)
			}
			defer f.Close()

			c, err := catalog.Decode(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d categories, %d characters, %d frames on the roll)\n",
				args[0], len(c.Categories), len(c.Characters), len(c.Roll))
			return nil
		},
	}
}
