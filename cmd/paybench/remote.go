package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/paybench/internal/api"
	"github.com/ignite/paybench/internal/pkg/httpretry"
	"github.com/ignite/paybench/internal/pkg/httputil"
	"github.com/ignite/paybench/internal/service/ingest"
)

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server: %s (%s, %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("server: %s (%d)", e.Message, e.Status)
}

func (e *apiError) exitCode() int {
	switch {
	case e.Status == http.StatusUnprocessableEntity || e.Status == http.StatusConflict:
		return exitValidation
	case e.Status >= 400 && e.Status < 500:
		return exitUsage
	}
	return exitDB
}

type apiClient struct {
	baseURL   *url.URL
	workspace string
	http      httpretry.HTTPDoer
}

func newAPIClient(baseURL, workspace string, doer httpretry.HTTPDoer) (*apiClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --server: %q", baseURL))
	}
	if strings.TrimSpace(workspace) == "" {
		return nil, withCode(exitUsage, errors.New("--workspace is required with --server"))
	}
	return &apiClient{baseURL: u, workspace: workspace, http: doer}, nil
}

func (c *apiClient) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(api.WorkspaceHeader, c.workspace)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e httputil.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		ae := &apiError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
		return withCode(ae.exitCode(), ae)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	return c.do(ctx, method, path, "application/json", body, out)
}

func (c *apiClient) create(ctx context.Context, path string, o *fileOptions) (*api.SessionView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if o.Type != "" {
		mw.WriteField("data_type", o.Type)
	}
	if o.Sheet != "" {
		mw.WriteField("sheet", o.Sheet)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var v api.SessionView
	if err := c.do(ctx, http.MethodPost, "/api/imports", mw.FormDataContentType(), buf.Bytes(), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *apiClient) schema(ctx context.Context, dt string) (*ingest.Schema, error) {
	var sc ingest.Schema
	if err := c.doJSON(ctx, http.MethodGet, "/api/schemas/"+url.PathEscape(dt), nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (c *apiClient) session(ctx context.Context, method, id, action string, in any) (*api.SessionView, error) {
	var v api.SessionView
	if err := c.doJSON(ctx, method, "/api/imports/"+url.PathEscape(id)+action, in, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *apiClient) remove(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/imports/"+url.PathEscape(id), nil, nil)
}

// remoteRunner drives the same pipeline through a paybench server.
type remoteRunner struct {
	client *apiClient
}

func (r *remoteRunner) run(ctx context.Context, path string, o *fileOptions, st stage) (*api.SessionView, error) {
	if _, err := o.dataType(); err != nil {
		return nil, err
	}
	maps, err := parseMaps(o.Maps)
	if err != nil {
		return nil, err
	}
	exclude, err := parseExclude(o.Exclude)
	if err != nil {
		return nil, err
	}

	v, err := r.client.create(ctx, path, o)
	if err != nil {
		return nil, err
	}
	if st != stageCommit {
		// Dry runs leave nothing behind on the server.
		defer r.client.remove(context.WithoutCancel(ctx), v.ID)
	}

	if len(maps) > 0 {
		schema, err := r.client.schema(ctx, string(v.DataType))
		if err != nil {
			return nil, err
		}
		for _, m := range maps {
			col, err := columnFor(v.Headers, m.Header)
			if err != nil {
				return nil, err
			}
			if field := fieldFor(schema, m.Field); field == "" {
				v, err = r.client.session(ctx, http.MethodDelete, v.ID, fmt.Sprintf("/mapping/%d", col), nil)
			} else {
				v, err = r.client.session(ctx, http.MethodPut, v.ID, "/mapping", api.AssignRequest{Column: col, Field: field})
			}
			if err != nil {
				return nil, fmt.Errorf("--map %s=%s: %w", m.Header, m.Field, err)
			}
		}
	}
	if st == stageInspect {
		return v, nil
	}

	validated, err := r.client.session(ctx, http.MethodPost, v.ID, "/validate", nil)
	if err != nil {
		v.Error = err.Error()
		return v, err
	}
	v = validated
	if len(exclude) > 0 {
		if v, err = r.client.session(ctx, http.MethodPut, v.ID, "/exclusions", api.ExclusionsRequest{Rows: exclude}); err != nil {
			return nil, err
		}
	}
	if st == stageValidate {
		return v, nil
	}

	committed, err := r.client.session(ctx, http.MethodPost, v.ID, "/commit", nil)
	if err != nil {
		return nil, err
	}
	if committed.Error != "" {
		return committed, withCode(exitDBWrite, fmt.Errorf("commit: %s", committed.Error))
	}
	return committed, nil
}
