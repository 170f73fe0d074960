package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"ragalert/internal/app"
	"ragalert/internal/domain"
)

var ingestBackend string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Load, chunk and embed every document in a directory",
	Long: `Ingest scans the documents directory (ingest.dir, or the given path) for
PDFs, splits every page into segments, embeds them and builds the index.
Embeddings are cached in embedding.cache_path, so re-ingesting unchanged
documents does not call the embedding model again.

Examples:
  ragalert ingest                  # Ingest ingest.dir from the config
  ragalert ingest ./manuales       # Ingest a specific directory
  ragalert ingest --backend qdrant # Build the index in Qdrant`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestBackend, "backend", "", "index backend: local or qdrant (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if len(args) > 0 {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		cfg.Ingest.Dir = path
	}
	if ingestBackend != "" {
		cfg.Index.Backend = ingestBackend
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	info, err := os.Stat(svc.DocsDir())
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", svc.DocsDir())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning %s...\n", svc.DocsDir())

	if isTerminal(os.Stderr) {
		svc.Ingest.OnProgress = progressReporter()
	}

	result, err := svc.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	printIngestResult(cmd, svc, result)
	return nil
}

// progressReporter draws a progress bar on stderr with an ETA.
func progressReporter() func(done, total int) {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		bar.Set(done)

		if done > 0 {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

func printIngestResult(cmd *cobra.Command, svc *app.Service, result *domain.IngestResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Documents: %d\n", len(result.Documents))
	fmt.Fprintf(out, "  Pages:     %d\n", result.Pages)
	fmt.Fprintf(out, "  Segments:  %d\n", result.Segments)
	fmt.Fprintf(out, "  Backend:   %s\n", result.Backend)
	fmt.Fprintf(out, "  Duration:  %s\n", formatDuration(result.Duration))
	if path := svc.Config.Embedding.CachePath; path != "" {
		fmt.Fprintf(out, "\nEmbedding cache: %s\n", path)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
