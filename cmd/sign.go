package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"datemate/pkg/config"
	"datemate/pkg/signature"

	"github.com/spf13/cobra"
)

var (
	signSecret string
	signFile   string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Compute a webhook signature",
	Long: "Prints the " + signature.Header + " value for a request body read from --file or stdin. " +
		"The secret defaults to the configured webhook secret.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		secret, err := resolveSignSecret(signSecret)
		if err != nil {
			return err
		}

		body, err := readSignBody(cmd.InOrStdin(), signFile)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), signature.Sign(secret, body))
		return err
	},
}

func init() {
	signCmd.Flags().StringVarP(&signSecret, "secret", "s", "", "Webhook secret (defaults to the configured secret)")
	signCmd.Flags().StringVarP(&signFile, "file", "f", "", "Read the body from this file instead of stdin")
	rootCmd.AddCommand(signCmd)
}

// resolveSignSecret returns the secret exactly as given; the platform signs
// with the raw configured value.
func resolveSignSecret(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.WebhookSecretConfigured() {
		return "", errors.New("no webhook secret configured; pass --secret or set VAPI_WEBHOOK_SECRET")
	}
	return cfg.Webhook.Secret, nil
}

// readSignBody returns the exact bytes to sign. Trailing newlines are kept
// since the platform signs the raw body.
func readSignBody(stdin io.Reader, path string) ([]byte, error) {
	if path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return body, nil
	}
	body, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read body from stdin: %w", err)
	}
	return body, nil
}
