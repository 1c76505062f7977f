package cmd

import (
	"github.com/habedi/oidckit/token"
	"github.com/spf13/cobra"
)

// renewCmd forces a renewal of one stored token.
func renewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "renew [key]",
		Short: "Renew a stored token with the provider",
		Long:  "Renew the token stored under the given key (defaults to the access token).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			key := token.KeyAccessToken
			if len(args) == 1 {
				key = args[0]
			}
			tok, err := app.tokens.Renew(cmd.Context(), key)
			if err != nil {
				return err
			}
			cmd.Printf("Token %q renewed, now valid until %d.\n", key, tok.ExpiresAt)
			return nil
		},
	}
	return cmd
}
