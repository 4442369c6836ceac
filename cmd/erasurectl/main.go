// AngelaMos | 2026
// main.go

// erasurectl is the operator CLI for the account erasure lifecycle.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/erasure/internal/app"
	"github.com/carterperez-dev/erasure/internal/auth"
	"github.com/carterperez-dev/erasure/internal/config"
	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/deletion"
)

type cli struct {
	configPath string
	limit      int
	offset     int
	out        io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "erasurectl",
		Short:         "Operate the deferred account erasure lifecycle",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "path to config file")

	listFlags := func(cmd *cobra.Command) *cobra.Command {
		cmd.Flags().IntVar(&c.limit, "limit", 50, "maximum rows to return")
		cmd.Flags().IntVar(&c.offset, "offset", 0, "rows to skip")
		return cmd
	}

	root.AddCommand(
		listFlags(&cobra.Command{
			Use:   "pending",
			Short: "List accounts with a pending deletion",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
				accounts, total, err := a.Manager.ListPending(ctx, c.limit, c.offset)
				if err != nil {
					return err
				}
				return c.print(listing{Total: total, Accounts: deletion.ToOperatorViews(accounts)})
			}),
		}),
		listFlags(&cobra.Command{
			Use:   "failed",
			Short: "List deletions awaiting manual review",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
				accounts, total, err := a.Manager.ListFailed(ctx, c.limit, c.offset)
				if err != nil {
					return err
				}
				return c.print(listing{Total: total, Accounts: deletion.ToOperatorViews(accounts)})
			}),
		}),
		&cobra.Command{
			Use:   "due",
			Short: "List accounts whose grace period has elapsed",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
				ids, err := a.Manager.ListDueForDeletion(ctx, a.Clock.Now())
				if err != nil {
					return err
				}
				return c.print(ids)
			}),
		},
		&cobra.Command{
			Use:   "process-due",
			Short: "Run the grace period callback for every due account now",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
				result, err := a.Manager.ProcessDue(ctx)
				if err != nil {
					return err
				}
				return c.print(result)
			}),
		},
		&cobra.Command{
			Use:   "recover",
			Short: "Re-arm callbacks from the database and fail interrupted purges",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
				result, err := a.Manager.Recover(ctx)
				if err != nil {
					return err
				}
				return c.print(result)
			}),
		},
		&cobra.Command{
			Use:   "status ACCOUNT_ID",
			Short: "Show the lifecycle state of one account",
			Args:  cobra.ExactArgs(1),
			RunE: c.withAccount(func(ctx context.Context, a *app.App, id uuid.UUID) error {
				acct, err := a.Manager.Status(ctx, id)
				if err != nil {
					return err
				}
				return c.print(deletion.ToOperatorView(acct))
			}),
		},
		&cobra.Command{
			Use:   "cancel ACCOUNT_ID",
			Short: "Cancel a pending deletion or clear a failed one",
			Args:  cobra.ExactArgs(1),
			RunE: c.withAccount(func(ctx context.Context, a *app.App, id uuid.UUID) error {
				if err := a.Manager.CancelDeletion(ctx, id); err != nil {
					return err
				}
				return c.print(map[string]string{"account_id": id.String(), "state": string(deletion.StateActive)})
			}),
		},
		&cobra.Command{
			Use:   "execute ACCOUNT_ID",
			Short: "Run the grace period callback for one account",
			Args:  cobra.ExactArgs(1),
			RunE: c.withAccount(func(ctx context.Context, a *app.App, id uuid.UUID) error {
				return a.Manager.ExecuteDeletion(ctx, id)
			}),
		},
		c.migrateCmd(),
		c.pruneTokensCmd(),
		keygenCmd(),
	)

	return root
}

type listing struct {
	Total    int                     `json:"total"`
	Accounts []deletion.OperatorView `json:"accounts"`
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(config.LogConfig{Level: cfg.Log.Level, Format: "text"})
	return cfg, logger, nil
}

func (c *cli) withApp(
	fn func(ctx context.Context, a *app.App, args []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := c.load()
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd.Context(), a, args)
	}
}

func (c *cli) withAccount(
	fn func(ctx context.Context, a *app.App, id uuid.UUID) error,
) func(*cobra.Command, []string) error {
	return c.withApp(func(ctx context.Context, a *app.App, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id %q: %w", args[0], err)
		}
		return fn(ctx, a, id)
	})
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}

			db, err := core.NewDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits next

			return db.Migrate(cmd.Context(), logger)
		},
	}
}

func (c *cli) pruneTokensCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete refresh tokens that expired before the cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := c.load()
			if err != nil {
				return err
			}

			db, err := core.NewDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits next

			n, err := auth.NewRepository(db.DB).DeleteExpired(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			return c.print(map[string]int64{"deleted": n})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "grace after expiry before a token is removed")
	return cmd
}

func keygenCmd() *cobra.Command {
	var privatePath, publicPath string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ES256 key pair for access tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return auth.GenerateKeyPair(privatePath, publicPath)
		},
	}
	cmd.Flags().StringVar(&privatePath, "private", "keys/private.pem", "private key output path")
	cmd.Flags().StringVar(&publicPath, "public", "keys/public.pem", "public key output path")
	return cmd
}
