package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgent/flowgent/internal/credentials"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a credentials encryption key",
	Long: `Print a random base64 key suitable for credentials.encryption_key.

Changing the key makes previously stored credentials unreadable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := credentials.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
