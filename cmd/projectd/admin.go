package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// Admin commands open the store directly. With the pebble engine the
// server must be stopped first; the store directory is locked while open.

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every project and reset the ID allocator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !purgeYes {
			return errors.New("purge deletes all projects; pass --yes to confirm")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			n, err := a.store.PurgeAll(ctx)
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			logging.FromContext(ctx).Warn(ctx, "admin purge", zap.Int("deleted", n))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d projects\n", n)
			return nil
		})
	},
}

var resetDownloadsCmd = &cobra.Command{
	Use:   "reset-downloads",
	Short: "Zero the download counter of every project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			n, err := a.store.ResetAllDownloadCounts(ctx)
			if err != nil {
				return fmt.Errorf("reset downloads: %w", err)
			}
			logging.FromContext(ctx).Info(ctx, "admin download reset", zap.Int("changed", n))
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d projects\n", n)
			return nil
		})
	},
}

var banCmd = &cobra.Command{
	Use:   "ban <userId>",
	Short: "Ban a user from creating projects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.store.Ban(ctx, args[0]); err != nil {
				return fmt.Errorf("ban: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Banned %s\n", args[0])
			return nil
		})
	},
}

var unbanCmd = &cobra.Command{
	Use:   "unban <userId>",
	Short: "Lift a ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.store.Unban(ctx, args[0]); err != nil {
				return fmt.Errorf("unban: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unbanned %s\n", args[0])
			return nil
		})
	},
}

var bansCmd = &cobra.Command{
	Use:   "bans",
	Short: "List banned users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			users, err := a.store.BannedUsers(ctx)
			if err != nil {
				return fmt.Errorf("list bans: %w", err)
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No banned users")
				return nil
			}
			for _, u := range users {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		})
	},
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "confirm deletion of all projects")
	rootCmd.AddCommand(purgeCmd, resetDownloadsCmd, banCmd, unbanCmd, bansCmd)
}

// withApp loads config, opens the store without event publishing, runs fn
// and closes everything.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx = logging.WithCallerID(ctx, "admin")
	return fn(logging.WithLogger(ctx, a.logger.Named("admin")), a)
}
