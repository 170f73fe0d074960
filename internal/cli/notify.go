package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"ragalert/internal/usecase"
)

var (
	notifyTo      string
	notifySubject string
	notifyBody    string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a message to the configured alert recipients",
	Long: `Notify sends a free-form e-mail through the alert SMTP account. The
recipient must be one of notify.to; without --to every recipient gets it.

Examples:
  ragalert notify -s "Simulacro" -b "Simulacro de evacuación a las 10:00"`,
	Args: cobra.NoArgs,
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.Flags().StringVar(&notifyTo, "to", "", "recipient (default all configured recipients)")
	notifyCmd.Flags().StringVarP(&notifySubject, "subject", "s", "", "subject (required)")
	notifyCmd.Flags().StringVarP(&notifyBody, "body", "b", "", "message body (required)")
}

func runNotify(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ok, err := svc.Alerts.Send(cmd.Context(), usecase.MessageRequest{
		To:      notifyTo,
		Subject: notifySubject,
		Body:    notifyBody,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("message was not delivered, see the log for details")
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Message sent"))
	return nil
}
