package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgent/flowgent/internal/auth"
	"github.com/flowgent/flowgent/internal/config"
)

var tokenEmail string

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a session token for a user",
	Long: `Print a signed session token for user-id, for calling the API from
scripts. Requires auth.session.secret to be configured.

Example:
  curl -H "Authorization: Bearer $(flowgent token user-1)" \
    -X POST localhost:8090/api/workflows/wf-1/execute`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim for the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateSecret("auth.session.secret", cfg.Auth.Session.Secret); err != nil {
		return err
	}

	token, expires, err := auth.NewSessionService(cfg.Auth.Session).Issue(args[0], tokenEmail)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format("2006-01-02 15:04:05 MST"))
	return nil
}
