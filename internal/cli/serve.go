package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"ragalert/internal/domain"
	"ragalert/internal/server"
)

var (
	serveAddr     string
	serveWatch    bool
	serveDebounce time.Duration
	serveNoIngest bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve ingests the documents directory and exposes the query, ingest,
notification and report endpoints over HTTP. With --watch the index is
rebuilt whenever a document changes; a failed rebuild keeps the current one.

Examples:
  ragalert serve
  ragalert serve --addr :9000 --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "rebuild the index when documents change")
	serveCmd.Flags().DurationVar(&serveDebounce, "debounce", 2*time.Second, "quiet period before a watched rebuild")
	serveCmd.Flags().BoolVar(&serveNoIngest, "no-ingest", false, "start with an empty index")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if !serveNoIngest {
		if _, err := svc.Rebuild(ctx); err != nil {
			if !errors.Is(err, domain.ErrNoDocuments) && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			logger.Warn("starting without documents", "dir", svc.DocsDir(), "error", err)
		}
	}

	var watchDone <-chan struct{}
	if serveWatch {
		if err := os.MkdirAll(svc.DocsDir(), 0755); err != nil {
			return err
		}
		watchDone, err = svc.Watch(ctx, serveDebounce)
		if err != nil {
			return err
		}
		logger.Info("watching documents", "dir", svc.DocsDir())
	}

	err = server.New(svc, logger).ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	stop()
	if watchDone != nil {
		<-watchDone
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
