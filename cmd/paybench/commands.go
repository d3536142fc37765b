package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ignite/paybench/internal/api"
	"github.com/ignite/paybench/internal/config"
	"github.com/ignite/paybench/internal/pkg/httpretry"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/repository/postgres"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

type runner interface {
	run(ctx context.Context, path string, o *fileOptions, st stage) (*api.SessionView, error)
}

func newInspectCmd() *cobra.Command {
	var opts fileOptions
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Parse a file and show the proposed column mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args[0], &opts, stageInspect)
		},
	}
	addFileFlags(cmd, &opts)
	return cmd
}

func newValidateCmd() *cobra.Command {
	var opts fileOptions
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate every row and print a summary with issues",
		Long:  "Validate every row and print a summary with issues. Exits with status 2 when the mapping is not ready or any row is invalid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args[0], &opts, stageValidate)
		},
	}
	addFileFlags(cmd, &opts)
	addExcludeFlag(cmd, &opts)
	return cmd
}

func newImportCmd() *cobra.Command {
	var opts fileOptions
	cmd := &cobra.Command{
		Use:   "import <file> --workspace <id>",
		Short: "Validate a file and commit its valid rows",
		Long: "Validate a file and commit its valid, non-excluded rows. Without --server the rows go " +
			"straight to the database named by DATABASE_URL.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Workspace == "" {
				return withCode(exitUsage, errors.New("--workspace is required"))
			}
			return execute(cmd, args[0], &opts, stageCommit)
		},
	}
	addFileFlags(cmd, &opts)
	addExcludeFlag(cmd, &opts)
	return cmd
}

func execute(cmd *cobra.Command, path string, opts *fileOptions, st stage) error {
	level := logger.WARN
	if opts.Verbose {
		level = logger.INFO
	}
	log := logger.New(cmd.ErrOrStderr(), level, true)

	r, cleanup, err := newRunner(cmd.Context(), opts, st, log)
	if err != nil {
		return err
	}
	defer cleanup()

	v, runErr := r.run(cmd.Context(), path, opts, st)
	if v != nil {
		if err := report(cmd.OutOrStdout(), v, opts, st); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	return outcome(v, st)
}

// newRunner picks the remote server, the database, or neither for dry runs.
func newRunner(ctx context.Context, opts *fileOptions, st stage, log *logger.Logger) (runner, func(), error) {
	noop := func() {}
	if opts.Server != "" {
		c, err := newAPIClient(opts.Server, opts.Workspace, httpretry.New(nil, httpretry.WithLogger(log)))
		if err != nil {
			return nil, noop, err
		}
		return &remoteRunner{client: c}, noop, nil
	}

	if st != stageCommit {
		r, err := newLocalRunner(opts.Taxonomy, nil, log)
		return r, noop, err
	}

	db, err := openDB(ctx)
	if err != nil {
		return nil, noop, err
	}
	r, err := newLocalRunner(opts.Taxonomy, postgres.NewUploadRepo(db), log)
	if err != nil {
		db.Close()
		return nil, noop, err
	}
	return r, func() { db.Close() }, nil
}

func openDB(ctx context.Context) (*sql.DB, error) {
	cfg, err := config.LoadFromEnv(os.Getenv("PAYBENCH_CONFIG"))
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("load config: %w", err))
	}
	if cfg.Database.URL == "" {
		return nil, withCode(exitUsage, errors.New("DATABASE_URL is required for import (or pass --server)"))
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect: %w", err))
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping: %w", err))
	}
	return db, nil
}

func report(w io.Writer, v *api.SessionView, opts *fileOptions, st stage) error {
	if opts.JSON {
		return writeJSON(w, v)
	}
	printView(w, v, st)
	return nil
}

// outcome turns a finished run into an exit status.
func outcome(v *api.SessionView, st stage) error {
	switch st {
	case stageValidate:
		if v.Summary != nil && v.Summary.Invalid > 0 {
			return withCode(exitValidation, fmt.Errorf("%d of %d rows are invalid", v.Summary.Invalid, v.Summary.Total))
		}
	case stageCommit:
		if v.Result != nil && !v.Result.Success {
			return withCode(exitDBWrite, fmt.Errorf("%d batches failed; %d records inserted", len(v.Result.Errors), v.Result.InsertedCount))
		}
	}
	return nil
}
