package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	incidentsLimit int
	incidentsJSON  bool
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List recorded incidents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runIncidents,
}

func init() {
	rootCmd.AddCommand(incidentsCmd)
	incidentsCmd.Flags().IntVarP(&incidentsLimit, "limit", "n", 20, "maximum number of incidents (0 for all)")
	incidentsCmd.Flags().BoolVar(&incidentsJSON, "json", false, "output as JSON")
}

func runIncidents(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	list, err := svc.Alerts.Incidents(cmd.Context(), incidentsLimit)
	if err != nil {
		return fmt.Errorf("failed to list incidents: %w", err)
	}

	out := cmd.OutOrStdout()
	if incidentsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No incidents recorded.")
		return nil
	}
	for _, inc := range list {
		status := successStyle.Render("notified")
		if !inc.Notified {
			status = alertStyle.Render("not notified")
		}
		fmt.Fprintf(out, "%s  %s\n", titleStyle.Render(inc.CreatedAt.Local().Format("2006-01-02 15:04:05")), status)
		fmt.Fprintf(out, "  %s\n", inc.Query)
		fmt.Fprintln(out, mutedStyle.Render("  "+inc.ID))
	}
	return nil
}
