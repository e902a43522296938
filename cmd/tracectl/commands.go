package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"seedtrace/internal/audit"
	auditpostgres "seedtrace/internal/audit/store/postgres"
	"seedtrace/internal/platform/config"
	"seedtrace/internal/platform/logger"
	"seedtrace/internal/platform/postgres"
)

// errChainBroken makes verify-chain exit non-zero after printing the result.
var errChainBroken = errors.New("audit chain verification failed")

type rootOptions struct {
	databaseURL string
	driver      string
	secret      string
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tracectl",
		Short:         "Maintenance commands for a seedtrace database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	root.PersistentFlags().StringVar(&opts.driver, "driver", envOr("DATABASE_DRIVER", "postgres"), "database/sql driver: postgres or pgx")
	root.PersistentFlags().StringVar(&opts.secret, "audit-secret", os.Getenv("AUDIT_SECRET"), "secret used to sign audit records")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall command timeout")

	root.AddCommand(
		newSchemaCmd(),
		newMigrateCmd(opts),
		newVerifyChainCmd(opts),
		newAuditReportCmd(opts),
	)
	return root
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the DDL applied by migrate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, stmt := range postgres.Statements() {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the seedtrace tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := postgres.Migrate(ctx, db); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return err
			})
		},
	}
}

func newVerifyChainCmd(opts *rootOptions) *cobra.Command {
	var start, end int64
	cmd := &cobra.Command{
		Use:   "verify-chain",
		Short: "Recompute audit signatures and chain hashes",
		Long: `Walks the audit log in id order and recomputes every signature and chain hash.
Exits non-zero when a record does not match its predecessor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				svc, err := opts.auditService(db)
				if err != nil {
					return err
				}
				result, err := svc.VerifyChain(ctx, start, end)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if !result.Valid {
					return fmt.Errorf("%w at record %d", errChainBroken, result.BrokenAtID)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&start, "start", 0, "first record id (0 = beginning)")
	cmd.Flags().Int64Var(&end, "end", 0, "last record id (0 = end of log)")
	return cmd
}

func newAuditReportCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "audit-report",
		Short: "Summarize audit records by entity type, operation and day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromT, toT, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			return opts.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				svc, err := opts.auditService(db)
				if err != nil {
					return err
				}
				report, err := svc.Report(ctx, fromT, toT)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start, RFC 3339 or YYYY-MM-DD (default 30 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "window end, exclusive (default now)")
	return cmd
}

func (o *rootOptions) withDB(cmd *cobra.Command, fn func(ctx context.Context, db *sql.DB) error) error {
	if o.databaseURL == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	db, err := postgres.Open(ctx, config.DatabaseConfig{URL: o.databaseURL, Driver: o.driver})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(ctx, db)
}

func (o *rootOptions) auditService(db *sql.DB) (*audit.Service, error) {
	if o.secret == "" {
		return nil, errors.New("--audit-secret or AUDIT_SECRET is required to verify signatures")
	}
	return audit.NewService(auditpostgres.New(db), o.secret,
		audit.WithLogger(logger.NewWithWriter(os.Stderr, "warn")),
	), nil
}

func parseWindow(from, to string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	toT, fromT := now, now.AddDate(0, 0, -30)
	var err error
	if to != "" {
		if toT, err = parseTime(to); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if from != "" {
		if fromT, err = parseTime(from); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !fromT.Before(toT) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s must be before --to %s", fromT.Format(time.RFC3339), toT.Format(time.RFC3339))
	}
	return fromT, toT, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", v)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
