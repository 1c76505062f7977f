package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/habedi/oidckit/token"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd stores credentials obtained out of band (for example by
// completing the authorize flow printed by "login-url") so the manager
// can hold, renew and revoke them.
func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store tokens obtained from the identity provider",
		Long:  "Paste the ID, access and refresh tokens returned by the provider after completing the login flow.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			scopes, _ := cmd.Flags().GetStringSlice("scopes")

			rawID := promptForInput("ID token: ")
			rawAccess := promptForInput("Access token: ")
			rawRefresh := promptForPassword("Refresh token (hidden): ")

			idTok, err := token.FromRaw(token.KindID, rawID, scopes)
			if err != nil {
				return err
			}
			accessTok, err := token.FromRaw(token.KindAccess, rawAccess, scopes)
			if err != nil {
				return err
			}

			if err := app.tokens.Add(token.KeyIDToken, idTok); err != nil {
				return err
			}
			if err := app.tokens.Add(token.KeyAccessToken, accessTok); err != nil {
				return err
			}
			if rawRefresh != "" {
				if err := app.client.SetRefreshToken(rawRefresh); err != nil {
					return err
				}
			}
			cmd.Println("Tokens stored.")
			return nil
		},
	}
	return cmd
}

// loginURLCmd prints the authorization URL that starts a login.
func loginURLCmd() *cobra.Command {
	var state, fromURI string
	cmd := &cobra.Command{
		Use:   "login-url",
		Short: "Print the provider authorization URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			if fromURI != "" {
				if err := app.client.SetFromURI(fromURI); err != nil {
					return err
				}
			}
			return app.flow.LoginRedirect(state)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Opaque state value (generated when empty)")
	cmd.Flags().StringVar(&fromURI, "from-uri", "", "Referrer URI to return to after login")
	return cmd
}

// promptForInput prompts the user for input and returns the trimmed string.
func promptForInput(prompt string) string {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print(prompt)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println("Error: Failed to read input.")
		return ""
	}
	return strings.TrimSpace(input)
}

// promptForPassword prompts for input without echoing it.
func promptForPassword(prompt string) string {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Println("Error: Failed to read input.")
		return ""
	}
	return strings.TrimSpace(string(data))
}
