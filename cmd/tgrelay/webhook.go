package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flemzord/tgrelay/internal/registration"
)

func installCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <owner-id> <bot-token>",
		Short: "Point a bot's webhook at this relay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("url")
			return withApp(cmd, func(ctx context.Context, a *app) (string, error) {
				if baseURL == "" {
					baseURL = a.cfg.Server.PublicURL
				}
				if baseURL == "" {
					return "", errors.New("install: --url or public_url is required")
				}
				return a.registrar().Install(ctx, registration.InstallRequest{
					BaseURL:  baseURL,
					Prefix:   a.cfg.Server.RoutePrefix(),
					OwnerID:  args[0],
					BotToken: args[1],
					Secret:   a.cfg.Server.Secret,
				})
			})
		},
	}
	cmd.Flags().String("url", "", "Public base URL of the relay (defaults to public_url)")
	return cmd
}

func uninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <bot-token>",
		Short: "Remove a bot's webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (string, error) {
				return a.registrar().Uninstall(ctx, args[0], a.cfg.Server.Secret, "")
			})
		},
	}
}

// withApp loads the configuration, builds an app logging to stderr and
// prints the message returned by fn.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) (string, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	msg, err := fn(cmd.Context(), a)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), msg+"\n")
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
