package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/identity"
	"github.com/nhle/taskboard/internal/model"
)

func loginCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google",
		Long: `Open the Google consent page and keep the resulting token in the system
keyring. Requires identity.client_secrets_file in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), *configPath)
		},
	}
}

func runLogin(ctx context.Context, configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	creds, err := credential.Open()
	if err != nil {
		return err
	}
	g, err := identity.GoogleFromConfig(cfg.Identity, creds)
	if err != nil {
		return err
	}

	err = g.Login(ctx, cfg.Identity.AuthTimeout(), func(url string) {
		fmt.Fprintf(os.Stderr, "Open this URL in your browser to sign in:\n\n  %s\n\n", url)
	})
	if err != nil {
		return err
	}

	who, err := g.SignIn(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s.\n", who.Name())

	if cfg.Identity.Provider != "google" {
		fmt.Printf("Set identity.provider to \"google\" in %s to use this account.\n", configPath)
	}
	return nil
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Google token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := credential.Open()
			if err != nil {
				return err
			}
			if err := identity.NewGoogle(nil, creds).Forget(); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func mailboxCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailbox",
		Short: "Manage the IMAP notification archive",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "password",
		Short: "Store the IMAP password in the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			creds, err := credential.Open()
			if err != nil {
				return err
			}

			var password string
			err = huh.NewInput().
				Title(fmt.Sprintf("IMAP password for %s", cfg.Notifications.Mailbox.Username)).
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Run()
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password is empty")
			}
			if err := creds.Set(credential.KeyMailboxPassword, password); err != nil {
				return err
			}
			fmt.Println("Mailbox password saved.")
			return nil
		},
	})
	return cmd
}
