// authorityctl runs operator tasks against the session store directly:
// migrations, sweeps, revocations and one-off token issuance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"session-authority/internal/app"
	"session-authority/internal/config"
	"session-authority/internal/db/migrate"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authorityctl",
		Short:         "Operator utility for the session authority",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSessionsCommand())
	cmd.AddCommand(newTokensCommand())
	return cmd
}

// withApp loads config, builds the App and closes it after fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, app.NewLogger(cfg.LogLevel, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCommand() *cobra.Command {
	var (
		direction  string
		statusOnly bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the token_sessions schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			latest, err := migrate.Latest()
			if err != nil {
				return err
			}
			if statusOnly {
				st, err := migrate.Status(cfg.DatabaseURL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "token_sessions schema at version %s (latest %d)\n", st, latest)
				return nil
			}
			res, err := migrate.Apply(cfg.DatabaseURL, direction)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", migrate.Up, "Migration direction: up or down")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Print the applied schema version and exit")
	return cmd
}

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and revoke sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsRevokeCommand())
	cmd.AddCommand(newSessionsRevokeUserCommand())
	cmd.AddCommand(newSessionsSweepCommand())
	return cmd
}

func newSessionsListCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's active sessions, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				sessions, err := a.Authority().GetUserActiveSessions(ctx, userID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sessions)
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsRevokeCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Authority().RevokeSession(ctx, sessionID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", sessionID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionsRevokeUserCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "revoke-user",
		Short: "Revoke every session of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Authority().RevokeAllUserSessions(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete sessions older than SESSION_RETENTION",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Authority().CleanupExpiredSessions(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d sessions\n", n)
				return nil
			})
		},
	}
}

func newTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Issue and inspect stateless tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newTokensIssueCommand())
	cmd.AddCommand(newTokensVerifyCommand())
	return cmd
}

func newTokensIssueCommand() *cobra.Command {
	var (
		kind   string
		userID string
		email  string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an email verification or password reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var (
					token string
					err   error
				)
				switch kind {
				case "email_verification":
					token, err = a.Authority().GenerateEmailVerificationToken(userID, email)
				case "password_reset":
					token, err = a.Authority().GeneratePasswordResetToken(userID, email)
				default:
					return fmt.Errorf("--type must be email_verification or password_reset, got %q", kind)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "type", "password_reset", "Token type: email_verification or password_reset")
	cmd.Flags().StringVar(&userID, "user", "", "User id (sub)")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newTokensVerifyCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				auth := a.Authority()
				var verify func(string) (any, error)
				switch kind {
				case "email_verification":
					verify = func(t string) (any, error) { return auth.VerifyEmailVerificationToken(t) }
				case "password_reset":
					verify = func(t string) (any, error) { return auth.VerifyPasswordResetToken(t) }
				case "refresh":
					verify = func(t string) (any, error) { return auth.VerifyRefreshToken(t) }
				case "access":
					verify = func(t string) (any, error) { return auth.VerifyAccessTokenWithSession(ctx, t) }
				default:
					return fmt.Errorf("unknown --type %q", kind)
				}
				cl, err := verify(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), cl)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "type", "password_reset", "Token type: access, refresh, email_verification or password_reset")
	return cmd
}
