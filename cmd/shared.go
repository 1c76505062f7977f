package cmd

import (
	"fmt"

	"github.com/habedi/oidckit/authstate"
	"github.com/habedi/oidckit/client"
	"github.com/habedi/oidckit/session"
	"github.com/habedi/oidckit/token"
	"github.com/spf13/cobra"
)

// app bundles the wired-up SDK pieces used by the commands.
type app struct {
	client *client.Client
	tokens *token.Manager
	states *authstate.Manager
	flow   *session.Flow
}

// buildApp wires the provider client, token manager, auth state manager
// and sign-out flow from the root command's flags.
func buildApp(cmd *cobra.Command) (*app, error) {
	issuer, _ := cmd.Flags().GetString("issuer")
	clientID, _ := cmd.Flags().GetString("client-id")
	redirectURI, _ := cmd.Flags().GetString("redirect-uri")
	scopes, _ := cmd.Flags().GetStringSlice("scopes")

	cli, err := client.New(client.Config{
		Issuer:      issuer,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      scopes,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Renewer:   cli,
		AutoRenew: true,
	})
	if err != nil {
		return nil, err
	}

	states := authstate.NewManager(authstate.Config{Tokens: tokens})

	flow := session.NewFlow(session.Config{
		Tokens:  tokens,
		Session: cli,
		Revoker: cli,
		Nav:     &printNavigator{out: cmd},
		URLs:    cli,
	})

	return &app{client: cli, tokens: tokens, states: states, flow: flow}, nil
}

type printer interface {
	Println(args ...any)
}

// printNavigator renders navigation signals as terminal output; a CLI
// cannot steer a browser, so it tells the user where to go instead.
type printNavigator struct {
	out printer
}

func (n *printNavigator) Assign(url string) {
	n.out.Println("Open this URL in your browser:")
	n.out.Println(fmt.Sprintf("  %s", url))
}

func (n *printNavigator) Reload() {
	n.out.Println("Signed out. You can log in again at any time.")
}

func (n *printNavigator) CurrentURL() string { return "" }
