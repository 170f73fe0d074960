package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List the documents of the last ingest",
	Long: `Docs prints the documents recorded by the last successful ingest, in
discovery order, as kept in the embedding cache.`,
	Args: cobra.NoArgs,
	RunE: runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.Manifest()
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents ingested. Run 'ragalert ingest' first.")
		return nil
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d documents", len(docs))))
	for _, d := range docs {
		fmt.Fprintf(out, "  %-32s %3d pages  %s\n", d.Name, d.Pages, mutedStyle.Render(d.Path))
	}
	return nil
}
