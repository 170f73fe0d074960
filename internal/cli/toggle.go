package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle-backend",
	Short: "Check that the other index backend can be built",
	Long: `Toggle-backend ingests with the configured backend, then switches to the
other one (local or qdrant) and rebuilds, reporting whether the switch
succeeded. Use it to verify Qdrant connectivity before setting
USE_REMOTE_INDEX.`,
	Args: cobra.NoArgs,
	RunE: runToggle,
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}

func runToggle(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if _, err := svc.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("initial ingest failed: %w", err)
	}
	res, err := svc.ToggleBackend(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s\n", res.Previous, res.Current)
	if res.ReloadSuccess {
		fmt.Fprintln(out, successStyle.Render(res.Message))
		return nil
	}
	fmt.Fprintln(out, alertStyle.Render(res.Message))
	return fmt.Errorf("backend switch failed")
}
