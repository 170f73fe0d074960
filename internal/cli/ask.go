package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"ragalert/internal/domain"
)

var (
	askText        string
	askDocument    string
	askTemperature float64
	askJSON        bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question about the ingested documents",
	Long: `Ask ingests the documents directory, retrieves the most relevant segments
and answers with the configured model. Answers that describe an incident
trigger the same alert e-mail as the HTTP API.

Examples:
  ragalert ask -q "¿Qué EPP se necesita para el trasvase de MMA?"
  ragalert ask -q "emisiones de CO2" --doc informe_sostenibilidad --json`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "query", "q", "", "question (required)")
	askCmd.Flags().StringVar(&askDocument, "doc", "", "restrict retrieval to one document")
	askCmd.Flags().Float64Var(&askTemperature, "temperature", 0, "sampling temperature (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if _, err := svc.Rebuild(cmd.Context()); err != nil {
		logger.Warn("answering without documents", "error", err)
	}

	q := domain.Query{Text: askText, DocumentName: askDocument}
	if cmd.Flags().Changed("temperature") {
		q.Temperature = &askTemperature
	}

	res, err := svc.Query.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	renderAnswer(out, res, terminalWidth(out, 80))
	return nil
}

func renderAnswer(w io.Writer, res *domain.QueryResult, width int) {
	fmt.Fprintln(w, answerStyle.Width(max(width-4, 20)).Render(res.Answer))

	if len(res.Sources) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Fuentes"))
		for _, s := range res.Sources {
			excerpt := strings.Join(strings.Fields(s.Excerpt), " ")
			fmt.Fprintf(w, "  [%d] %s, página %d\n", s.Rank, s.DocumentName, s.Page)
			fmt.Fprintln(w, mutedStyle.Render("      "+excerpt))
		}
	}

	if res.Incident {
		status := "alerta enviada"
		if !res.Notified {
			status = "alerta NO enviada"
		}
		fmt.Fprintln(w, alertStyle.Render("Incidente detectado: "+status))
	}
}
