package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ignite/paybench/internal/api"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/resolve"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/ignite/paybench/internal/sheet"
	"github.com/ignite/paybench/internal/taxonomy"
)

// localWorkspace scopes sessions that never reach storage.
const localWorkspace = "local"

// localRunner runs the pipeline in process. repo may be nil when the run
// stops before commit.
type localRunner struct {
	svc *ingest.Service
}

func newLocalRunner(taxonomyPath string, repo upload.Repository, log *logger.Logger) (*localRunner, error) {
	var (
		ix  *taxonomy.Index
		err error
	)
	if taxonomyPath != "" {
		ix, err = taxonomy.LoadFile(taxonomyPath)
	} else {
		ix, err = taxonomy.Default()
	}
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("load taxonomy: %w", err))
	}

	store := ingest.NewMemoryStore()
	svc := ingest.NewService(resolve.New(ix), store, upload.NewService(repo, upload.WithLogger(log)),
		ingest.WithProgress(store),
		ingest.WithLogger(log),
	)
	return &localRunner{svc: svc}, nil
}

func (r *localRunner) run(ctx context.Context, path string, o *fileOptions, st stage) (*api.SessionView, error) {
	exclude, err := parseExclude(o.Exclude)
	if err != nil {
		return nil, err
	}
	sess, err := r.open(ctx, path, o)
	if err != nil {
		return nil, err
	}
	if st == stageInspect {
		return r.view(ctx, sess, nil)
	}

	id := sess.ID
	if sess, err = r.svc.Validate(ctx, id); err != nil {
		current, _ := r.svc.Get(ctx, id)
		return r.view(ctx, current, withCode(codeFor(err), err))
	}
	if len(exclude) > 0 {
		if sess, err = r.svc.SetExcluded(ctx, id, exclude); err != nil {
			return nil, withCode(codeFor(err), err)
		}
	}
	if st == stageValidate {
		return r.view(ctx, sess, nil)
	}

	committed, err := r.svc.Commit(ctx, id)
	if err != nil {
		if committed == nil || committed.Result == nil {
			return nil, withCode(exitDB, fmt.Errorf("commit: %w", err))
		}
		return r.view(ctx, committed, withCode(exitDBWrite, fmt.Errorf("commit: %w", err)))
	}
	return r.view(ctx, committed, nil)
}

func (r *localRunner) open(ctx context.Context, path string, o *fileOptions) (*ingest.Session, error) {
	dt, err := o.dataType()
	if err != nil {
		return nil, err
	}
	maps, err := parseMaps(o.Maps)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var opts []sheet.Option
	if o.Sheet != "" {
		opts = append(opts, sheet.WithSheet(o.Sheet))
	}
	name := filepath.Base(path)
	tbl, err := sheet.Parse(name, f, opts...)
	if err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("%s: %w", name, err))
	}

	ws := o.Workspace
	if ws == "" {
		ws = localWorkspace
	}
	ctx = upload.WithWorkspace(ctx, ws)
	sess, err := r.svc.Open(ctx, ingest.OpenRequest{
		WorkspaceID:   ws,
		FileName:      name,
		FileSize:      info.Size(),
		DataType:      dt,
		Headers:       tbl.Headers,
		Rows:          tbl.Rows,
		ParseWarnings: tbl.Warnings,
	})
	if err != nil {
		return nil, withCode(codeFor(err), err)
	}
	if len(maps) == 0 {
		return sess, nil
	}

	schema, err := r.svc.Schemas().For(sess.DataType)
	if err != nil {
		return nil, err
	}
	for _, m := range maps {
		col, err := columnFor(sess.Headers, m.Header)
		if err != nil {
			return nil, err
		}
		if field := fieldFor(schema, m.Field); field == "" {
			sess, err = r.svc.Unassign(ctx, sess.ID, col)
		} else {
			sess, err = r.svc.Assign(ctx, sess.ID, col, field)
		}
		if err != nil {
			return nil, withCode(codeFor(err), fmt.Errorf("--map %s=%s: %w", m.Header, m.Field, err))
		}
	}
	return sess, nil
}

// view renders sess and passes runErr through, so callers can print what
// happened before failing.
func (r *localRunner) view(ctx context.Context, sess *ingest.Session, runErr error) (*api.SessionView, error) {
	if sess == nil {
		return nil, runErr
	}
	v, err := api.NewSessionView(ctx, r.svc, sess)
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		v.Error = runErr.Error()
	}
	return v, runErr
}
