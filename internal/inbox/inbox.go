// Package inbox imports spreadsheets dropped into an S3 bucket. Objects are
// laid out as <prefix><workspace>/<data-type>/<file>; the data-type segment
// may be "auto" to let the classifier decide. Each object runs through the
// same import session as the API, without any manual mapping edits or
// exclusions, and is then moved under the processed or failed prefix.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/pkg/distlock"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/pkg/metrics"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/ignite/paybench/internal/sheet"
)

// ErrBadKey marks objects whose key does not follow the inbox layout.
var ErrBadKey = errors.New("object key does not match <workspace>/<data-type>/<file>")

// errGone means the object was moved by another replica after it was listed.
var errGone = errors.New("object no longer in inbox")

// S3API is the part of *s3.Client the inbox uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds inbox settings.
type Config struct {
	Bucket          string
	Prefix          string
	ProcessedPrefix string
	FailedPrefix    string
	Interval        time.Duration
	MaxRows         int
}

// Outcome is what happened to one object.
type Outcome struct {
	Key       string          `json:"key"`
	MovedTo   string          `json:"moved_to,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	DataType  domain.DataType `json:"data_type,omitempty"`
	Summary   *ingest.Summary `json:"summary,omitempty"`
	Inserted  int             `json:"inserted"`
	Errors    []string        `json:"errors,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Inbox polls the bucket on an interval.
type Inbox struct {
	client  S3API
	svc     *ingest.Service
	cfg     Config
	locks   distlock.Factory
	metrics *metrics.Manager
	log     *logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   int32
	healthy   atomic.Bool
	lastRunAt atomic.Int64
}

// Option configures an Inbox.
type Option func(*Inbox)

func WithLocks(f distlock.Factory) Option    { return func(in *Inbox) { in.locks = f } }
func WithMetrics(m *metrics.Manager) Option { return func(in *Inbox) { in.metrics = m } }
func WithLogger(l *logger.Logger) Option    { return func(in *Inbox) { in.log = l } }

// New creates an inbox. Missing prefixes and interval take defaults.
func New(client S3API, svc *ingest.Service, cfg Config, opts ...Option) *Inbox {
	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}
	if cfg.ProcessedPrefix == "" {
		cfg.ProcessedPrefix = "processed/"
	}
	if cfg.FailedPrefix == "" {
		cfg.FailedPrefix = "failed/"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = sheet.MaxRows
	}
	in := &Inbox{client: client, svc: svc, cfg: cfg, log: logger.Default()}
	for _, opt := range opts {
		opt(in)
	}
	if in.locks == nil {
		in.locks = distlock.NewFactory(nil, nil, 10*time.Minute)
	}
	in.log = in.log.With("inbox")
	in.healthy.Store(true)
	return in
}

// NewS3Client loads AWS credentials the usual way, optionally from a named
// shared-config profile.
func NewS3Client(ctx context.Context, region, profile string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

func (in *Inbox) Start() {
	in.ctx, in.cancel = context.WithCancel(context.Background())
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.RunOnce(in.ctx)
		ticker := time.NewTicker(in.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-in.ctx.Done():
				return
			case <-ticker.C:
				in.RunOnce(in.ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the current object to finish.
func (in *Inbox) Stop() {
	if in.cancel != nil {
		in.cancel()
	}
	in.wg.Wait()
}

func (in *Inbox) IsHealthy() bool { return in.healthy.Load() }
func (in *Inbox) IsRunning() bool { return atomic.LoadInt32(&in.running) == 1 }

func (in *Inbox) LastRunAt() time.Time {
	if ns := in.lastRunAt.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// RunOnce lists the inbox and processes every object in key order. It
// returns nil when another run is already in progress.
func (in *Inbox) RunOnce(ctx context.Context) []Outcome {
	if !atomic.CompareAndSwapInt32(&in.running, 0, 1) {
		return nil
	}
	defer atomic.StoreInt32(&in.running, 0)
	in.lastRunAt.Store(time.Now().UnixNano())

	keys, err := in.list(ctx)
	if err != nil {
		in.log.Error("list inbox failed", "bucket", in.cfg.Bucket, "error", err)
		in.healthy.Store(false)
		return nil
	}
	in.healthy.Store(true)

	var out []Outcome
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		o, err := in.processLocked(ctx, key)
		switch {
		case errors.Is(err, distlock.ErrNotAcquired), errors.Is(err, errGone):
			in.metrics.InboxObject("skipped")
			continue
		case err != nil:
			in.log.Warn("inbox object not processed", "key", key, "error", err)
			continue
		}
		out = append(out, o)
	}
	if len(out) > 0 {
		in.log.Info("inbox run finished", "objects", len(out))
	}
	return out
}

func (in *Inbox) list(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(in.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(in.cfg.Bucket),
		Prefix: aws.String(in.cfg.Prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || aws.ToInt64(obj.Size) == 0 {
				continue
			}
			if in.cfg.Prefix == "" && (strings.HasPrefix(key, in.cfg.ProcessedPrefix) || strings.HasPrefix(key, in.cfg.FailedPrefix)) {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// processLocked claims the object so that concurrent replicas never import
// the same file twice. The listing may be stale by the time the lock is
// held, so the object is checked again first.
func (in *Inbox) processLocked(ctx context.Context, key string) (Outcome, error) {
	var o Outcome
	err := distlock.Do(ctx, in.locks("inbox:"+in.cfg.Bucket+"/"+key), func(ctx context.Context) error {
		if err := in.stillThere(ctx, key); err != nil {
			return err
		}
		o = in.process(ctx, key)
		return nil
	})
	return o, err
}

func (in *Inbox) stillThere(ctx context.Context, key string) error {
	_, err := in.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(in.cfg.Bucket),
		Key:    aws.String(key),
	})
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return errGone
	}
	if err != nil {
		return fmt.Errorf("head object: %w", err)
	}
	return nil
}

func (in *Inbox) process(ctx context.Context, key string) Outcome {
	o := Outcome{Key: key}
	rest := strings.TrimPrefix(key, in.cfg.Prefix)

	err := in.importObject(ctx, key, rest, &o)
	if err != nil {
		o.Error = err.Error()
		o.MovedTo = in.cfg.FailedPrefix + rest
		in.metrics.InboxObject("failed")
		in.log.Warn("inbox object failed", "key", key, "error", o.Error)
		if rerr := in.writeReport(ctx, o.MovedTo+".error.json", o); rerr != nil {
			in.log.Error("write failure report", "key", key, "error", rerr)
		}
	} else {
		o.MovedTo = in.cfg.ProcessedPrefix + rest
		in.metrics.InboxObject("processed")
		in.log.Info("inbox object imported", "key", key, "session", o.SessionID, "inserted", o.Inserted)
	}

	if merr := in.move(ctx, key, o.MovedTo); merr != nil {
		in.log.Error("move inbox object", "key", key, "to", o.MovedTo, "error", merr)
		o.MovedTo = ""
	}
	return o
}

func (in *Inbox) importObject(ctx context.Context, key, rest string, o *Outcome) error {
	workspace, dt, name, err := parseKey(rest)
	if err != nil {
		return err
	}
	ctx = upload.WithWorkspace(ctx, workspace)

	obj, err := in.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(in.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}
	defer obj.Body.Close()

	tbl, err := sheet.Parse(name, obj.Body, sheet.WithMaxRows(in.cfg.MaxRows))
	if err != nil {
		return err
	}

	sess, err := in.svc.Open(ctx, ingest.OpenRequest{
		WorkspaceID:   workspace,
		FileName:      name,
		FileSize:      aws.ToInt64(obj.ContentLength),
		DataType:      dt,
		Headers:       tbl.Headers,
		Rows:          tbl.Rows,
		ParseWarnings: tbl.Warnings,
	})
	if err != nil {
		return err
	}
	o.SessionID = sess.ID
	o.DataType = sess.DataType
	// The session only lives for this object.
	defer in.svc.Delete(context.WithoutCancel(ctx), sess.ID)

	if _, err := in.svc.Validate(ctx, sess.ID); err != nil {
		return err
	}
	if o.Summary, err = in.svc.Summary(ctx, sess.ID); err != nil {
		return err
	}

	sess, err = in.svc.Commit(ctx, sess.ID)
	if sess != nil && sess.Result != nil {
		o.Inserted = sess.Result.InsertedCount
		o.Errors = sess.Result.Errors
	}
	if err != nil {
		return err
	}
	if !sess.Result.Success {
		return fmt.Errorf("%d of the batches failed", len(sess.Result.Errors))
	}
	return nil
}

// parseKey splits <workspace>/<data-type>/<file>. Nested folders below the
// data type are kept in the file name.
func parseKey(rest string) (string, domain.DataType, string, error) {
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrBadKey, rest)
	}
	dt := domain.DataType(strings.ToLower(parts[1]))
	if dt == "auto" {
		dt = ""
	} else if !dt.Valid() {
		return "", "", "", fmt.Errorf("%w: %q", ingest.ErrUnknownDataType, parts[1])
	}
	return parts[0], dt, path.Base(parts[2]), nil
}

func (in *Inbox) move(ctx context.Context, from, to string) error {
	ctx = context.WithoutCancel(ctx)
	source := strings.ReplaceAll(url.PathEscape(in.cfg.Bucket+"/"+from), "%2F", "/")
	if _, err := in.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(in.cfg.Bucket),
		Key:        aws.String(to),
		CopySource: aws.String(source),
	}); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if _, err := in.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(in.cfg.Bucket),
		Key:    aws.String(from),
	}); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (in *Inbox) writeReport(ctx context.Context, key string, o Outcome) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	_, err = in.client.PutObject(context.WithoutCancel(ctx), &s3.PutObjectInput{
		Bucket:      aws.String(in.cfg.Bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(string(data)),
		ContentType: aws.String("application/json"),
	})
	return err
}
