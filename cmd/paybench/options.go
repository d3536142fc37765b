package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/spf13/cobra"
)

// stage is how far a run goes through the pipeline.
type stage int

const (
	stageInspect stage = iota
	stageValidate
	stageCommit
)

type fileOptions struct {
	Workspace string
	Type      string
	Sheet     string
	Maps      []string
	Exclude   string
	Taxonomy  string
	Server    string
	JSON      bool
	Verbose   bool
}

func addFileFlags(cmd *cobra.Command, opts *fileOptions) {
	cmd.Flags().StringVar(&opts.Workspace, "workspace", os.Getenv("PAYBENCH_WORKSPACE"), "workspace ID (env PAYBENCH_WORKSPACE)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "data type: employee, benchmark or compensation-update (guessed when empty)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "worksheet to read from an XLSX file (first sheet when empty)")
	cmd.Flags().StringArrayVar(&opts.Maps, "map", nil, "override a column mapping as Header=field; an empty field unmaps the column (repeatable)")
	cmd.Flags().StringVar(&opts.Taxonomy, "taxonomy", os.Getenv("TAXONOMY_PATH"), "reference data file replacing the built-in taxonomy")
	cmd.Flags().StringVar(&opts.Server, "server", os.Getenv("PAYBENCH_SERVER"), "paybench server URL; runs the import remotely instead of against DATABASE_URL")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the session as JSON")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log pipeline activity to stderr")
}

func addExcludeFlag(cmd *cobra.Command, opts *fileOptions) {
	cmd.Flags().StringVar(&opts.Exclude, "exclude", "", "data rows to leave out, as printed by validate (e.g. 3,7,10-12)")
}

func (o *fileOptions) dataType() (domain.DataType, error) {
	dt := domain.DataType(strings.ToLower(strings.TrimSpace(o.Type)))
	if dt != "" && !dt.Valid() {
		return "", withCode(exitUsage, fmt.Errorf("--type: %w: %q", ingest.ErrUnknownDataType, o.Type))
	}
	return dt, nil
}

type mapOverride struct {
	Header string
	Field  string
}

// parseMaps reads Header=field pairs. Field keys never contain '=', so the
// last one splits.
func parseMaps(specs []string) ([]mapOverride, error) {
	out := make([]mapOverride, 0, len(specs))
	for _, s := range specs {
		i := strings.LastIndex(s, "=")
		if i < 0 {
			return nil, withCode(exitUsage, fmt.Errorf("--map %q: want Header=field", s))
		}
		header := strings.TrimSpace(s[:i])
		if header == "" {
			return nil, withCode(exitUsage, fmt.Errorf("--map %q: header is empty", s))
		}
		out = append(out, mapOverride{Header: header, Field: strings.TrimSpace(s[i+1:])})
	}
	return out, nil
}

// parseExclude turns 1-based row numbers and ranges into zero-based data row
// indices.
func parseExclude(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var rows []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("--exclude: bad row %q", part))
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || last < first {
				return nil, withCode(exitUsage, fmt.Errorf("--exclude: bad range %q", part))
			}
		}
		if first < 1 {
			return nil, withCode(exitUsage, fmt.Errorf("--exclude: rows start at 1, got %q", part))
		}
		for r := first; r <= last; r++ {
			rows = append(rows, r-1)
		}
	}
	return rows, nil
}

var errNoColumn = errors.New("no column with that header")

// columnFor finds a header, exactly first and then ignoring case.
func columnFor(headers []string, header string) (int, error) {
	for i, h := range headers {
		if strings.TrimSpace(h) == header {
			return i, nil
		}
	}
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), header) {
			return i, nil
		}
	}
	return 0, withCode(exitUsage, fmt.Errorf("--map: %w: %q", errNoColumn, header))
}

// fieldFor accepts a field key or label. Unknown names pass through so the
// service reports them.
func fieldFor(schema *ingest.Schema, name string) string {
	if name == "" || name == "-" {
		return ""
	}
	if _, ok := schema.Field(name); ok {
		return name
	}
	for _, f := range schema.Fields {
		if strings.EqualFold(f.Key, name) || strings.EqualFold(f.Label, name) {
			return f.Key
		}
	}
	return name
}

// codeFor picks the exit code for a pipeline error.
func codeFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrMissingRequired),
		errors.Is(err, ingest.ErrDuplicateTarget),
		errors.Is(err, ingest.ErrNotValidated):
		return exitValidation
	case errors.Is(err, ingest.ErrUnknownField),
		errors.Is(err, ingest.ErrUnknownDataType),
		errors.Is(err, ingest.ErrRowOutOfRange),
		errors.Is(err, ingest.ErrColumnOutOfRange):
		return exitUsage
	}
	return 1
}
