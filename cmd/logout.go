package cmd

import (
	"github.com/habedi/oidckit/session"
	"github.com/spf13/cobra"
)

// logoutCmd runs the full sign-out procedure: revocation, local token
// wipe and the provider logout (or local) navigation signal.
func logoutCmd() *cobra.Command {
	var opts session.SignOutOptions
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			if err := app.flow.SignOut(cmd.Context(), opts); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.PostLogoutRedirectURI, "post-logout-redirect-uri", "", "Where to land after sign-out")
	cmd.Flags().BoolVar(&opts.NoIDTokenHint, "no-id-token-hint", false, "Sign out without the provider logout redirect")
	cmd.Flags().BoolVar(&opts.DisableRevoke, "no-revoke", false, "Skip access token revocation")
	cmd.Flags().StringVar(&opts.State, "state", "", "Opaque state value for the logout redirect")
	return cmd
}
