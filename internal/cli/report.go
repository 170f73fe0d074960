package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"ragalert/internal/domain"
)

var (
	reportTranscript string
	reportOut        string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an incident report from a chat transcript",
	Long: `Report reads a transcript ({"messages": [{"role", "content"}]}) and writes
a PDF incident report named reporte_incidente_YYYYMMDD_HHMMSS.pdf.

Examples:
  ragalert report -t chat.json
  ragalert report -t chat.json -o ./reportes`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportTranscript, "transcript", "t", "", "transcript JSON file (required)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", ".", "output directory")
	reportCmd.MarkFlagRequired("transcript")
}

func runReport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(reportTranscript)
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}
	var t domain.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to parse transcript: %w", err)
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, err := svc.Reports.Generate(cmd.Context(), t)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(reportOut, 0755); err != nil {
		return err
	}
	path := filepath.Join(reportOut, rep.Filename)
	if err := os.WriteFile(path, rep.Data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Report written to "+path))
	return nil
}
