package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/habedi/oidckit/authstate"
	"github.com/habedi/oidckit/token"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// statusCmd shows the stored tokens and the derived auth state.
func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored tokens and the current auth state",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Key", "Kind", "Expires", "Expired"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)

			for _, key := range []string{token.KeyIDToken, token.KeyAccessToken} {
				tok, err := app.tokens.Get(cmd.Context(), key)
				if err != nil {
					return err
				}
				if tok == nil {
					table.Append([]string{key, "-", "-", "-"})
					continue
				}
				table.Append([]string{
					key,
					string(tok.Kind),
					time.Unix(tok.ExpiresAt, 0).Format(time.RFC3339),
					fmt.Sprintf("%v", app.tokens.HasExpired(*tok)),
				})
			}
			table.Render()

			// The first recomputation settles asynchronously; give it
			// a moment before falling back to whatever is current.
			settled := make(chan authstate.AuthState, 1)
			off := app.states.OnAuthStateChange(func(s authstate.AuthState) {
				select {
				case settled <- s:
				default:
				}
			})
			defer off()
			app.states.UpdateAuthState(cmd.Context())

			var state authstate.AuthState
			select {
			case state = <-settled:
			case <-time.After(2 * time.Second):
				state = app.states.AuthState()
			}
			if state.Pending {
				cmd.Println("Auth state: pending")
			} else if state.Authenticated {
				cmd.Println("Auth state: authenticated")
			} else {
				cmd.Println("Auth state: not authenticated")
			}
			return nil
		},
	}
	return cmd
}
