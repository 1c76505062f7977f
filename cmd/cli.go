package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Execute() {
	rootCmd := createRootCmd()

	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oidckit",
		Short: "Manage OAuth2/OIDC tokens and sessions from the command line",
	}

	rootCmd.PersistentFlags().String("issuer", os.Getenv("OIDCKIT_ISSUER"), "Identity provider issuer URL")
	rootCmd.PersistentFlags().String("client-id", os.Getenv("OIDCKIT_CLIENT_ID"), "OAuth2 client ID")
	rootCmd.PersistentFlags().String("redirect-uri", os.Getenv("OIDCKIT_REDIRECT_URI"), "Login redirect URI")
	rootCmd.PersistentFlags().StringSlice("scopes", []string{"openid", "profile", "email"}, "Requested scopes")

	rootCmd.AddCommand(
		loginCmd(),
		loginURLCmd(),
		statusCmd(),
		renewCmd(),
		logoutCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}
