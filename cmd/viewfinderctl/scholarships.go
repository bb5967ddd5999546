package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/viewfinder/internal/config"
	"github.com/onnwee/viewfinder/internal/scholarship"
)

// downloadTimeout bounds a sheet download.
const downloadTimeout = 30 * time.Second

func newScholarshipsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scholarships",
		Short: "Manage the scholarship list",
	}
	cmd.AddCommand(newScholarshipsImportCmd(&http.Client{Timeout: downloadTimeout}))
	return cmd
}

// newScholarshipsImportCmd converts a CSV export into the JSON list the
// server reads. client downloads URL sources; nil uses a default client.
func newScholarshipsImportCmd(client *http.Client) *cobra.Command {
	var (
		src    string
		out    string
		dryRun bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import scholarships from a CSV file or URL",
		Long: `Import scholarships from a CSV export, such as a published Google Sheet
link or a local file, and write them as JSON.

The header row must name at least a name and a url column. Rows that fail
validation are listed and skipped unless --strict is set.`,
		Example: `  viewfinderctl scholarships import --csv sheet.csv
  viewfinderctl scholarships import --csv "https://docs.google.com/.../pub?output=csv" --out data/scholarships.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rc, err := scholarship.OpenCSV(ctx, client, src)
			if err != nil {
				return err
			}
			defer rc.Close()

			result, err := scholarship.ParseCSV(rc)
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			for _, skipped := range result.Skipped {
				fmt.Fprintf(stderr, "skipped %v\n", skipped)
			}
			if strict && len(result.Skipped) > 0 {
				return fmt.Errorf("%d invalid rows", len(result.Skipped))
			}
			if len(result.Scholarships) == 0 {
				return fmt.Errorf("no valid scholarships in %s", src)
			}

			stdout := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(stdout, "%d scholarships parsed, %d skipped (dry run, nothing written)\n",
					len(result.Scholarships), len(result.Skipped))
				return nil
			}
			if err := scholarship.Save(out, result.Scholarships); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %d scholarships to %s (%d skipped)\n",
				len(result.Scholarships), out, len(result.Skipped))
			return nil
		},
	}

	cmd.Flags().StringVar(&src, "csv", "", "path or http(s) URL of the CSV export")
	cmd.Flags().StringVar(&out, "out", config.DefaultScholarshipsPath, "output JSON file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any row is invalid")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}
