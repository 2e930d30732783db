package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/spigell/job-rotator/internal/secrets"
)

var keyringCmd = &cobra.Command{
	Use:   "keyring <account>",
	Short: "Store a platform token in the OS keychain",
	Long: "Store a platform token in the OS keychain under the given account.\n" +
		"Reference it from the config with keyring-account.",
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		prompt := promptui.Prompt{
			Label: fmt.Sprintf("Secret for %s", args[0]),
			Mask:  '*',
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("secret is empty")
				}
				return nil
			},
		}
		secret, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}

		if err := secrets.Store(args[0], secret); err != nil {
			return fmt.Errorf("storing secret: %w", err)
		}
		fmt.Printf("secret stored in keyring service %q, account %q\n", secrets.KeyringService, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyringCmd)
}
