package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/JonMunkholm/bomimport/internal/logging"
	"github.com/JonMunkholm/bomimport/internal/metrics"
	"github.com/google/uuid"
)

// Options are the import defaults the service applies.
type Options struct {
	// Company and Currency stamp every BOM tree. Empty values abort tree
	// imports; item imports do not need them.
	Company  string
	Currency string

	// DefaultUOM is the stock unit of items created without one.
	DefaultUOM string

	// RootItemGroup parents item groups created on demand.
	RootItemGroup string

	MaxConcurrent int
	MaxWait       time.Duration

	// Timeout bounds one import run; zero means no bound beyond the caller's.
	Timeout time.Duration
}

// Deps are the collaborators the service is built on.
type Deps struct {
	Rows        RowSource
	Attachments AttachmentWriter
	Catalog     Catalog
	Trees       TreeStore
	Requests    RequestStore
}

// Service runs parts-list imports. It is safe for concurrent use; each
// import runs sequentially in the caller's goroutine.
type Service struct {
	rows        RowSource
	attachments AttachmentWriter
	catalog     Catalog
	trees       TreeStore
	requests    RequestStore

	opts    Options
	limiter *ImportLimiter

	now   func() time.Time
	newID func() string
}

// ImportResult is returned by every import entry point.
type ImportResult struct {
	Summary string     `json:"summary"`
	Log     string     `json:"log"`
	Tree    string     `json:"bom_tree,omitempty"`
	BOM     string     `json:"bom,omitempty"`
	Details *ImportLog `json:"details"`
}

// NewService wires a service. Every dependency is required.
func NewService(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Rows == nil:
		return nil, errors.New("core: row source is required")
	case deps.Attachments == nil:
		return nil, errors.New("core: attachment store is required")
	case deps.Catalog == nil:
		return nil, errors.New("core: catalog is required")
	case deps.Trees == nil:
		return nil, errors.New("core: tree store is required")
	case deps.Requests == nil:
		return nil, errors.New("core: request store is required")
	}

	if opts.DefaultUOM == "" {
		opts.DefaultUOM = CountUOM
	}
	if opts.RootItemGroup == "" {
		opts.RootItemGroup = "All Item Groups"
	}

	return &Service{
		rows:        deps.Rows,
		attachments: deps.Attachments,
		catalog:     deps.Catalog,
		trees:       deps.Trees,
		requests:    deps.Requests,
		opts:        opts,
		limiter:     NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}, nil
}

// CreateRequest stores an uploaded parts-list file and opens an import
// request for it.
func (s *Service) CreateRequest(ctx context.Context, fileName string, data []byte) (Request, error) {
	fileName = path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if _, err := Extension(fileName); err != nil {
		return Request{}, err
	}
	if len(data) == 0 {
		return Request{}, ErrNoData
	}

	id := s.newID()
	ref := id + "/" + fileName
	if err := s.attachments.Put(ctx, ref, data); err != nil {
		return Request{}, fmt.Errorf("store attachment: %w", err)
	}

	now := s.now().UTC()
	req := Request{
		ID:        id,
		FileRef:   ref,
		FileName:  fileName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return Request{}, fmt.Errorf("create import request: %w", err)
	}

	logging.FromContext(ctx).With(OriginFrom(ctx).logArgs()...).Info("import request created",
		"import_id", id, "file", fileName, "bytes", len(data))
	return req, nil
}

// GetRequest returns an import request with its logs.
func (s *Service) GetRequest(ctx context.Context, id string) (Request, error) {
	return s.requests.GetRequest(ctx, id)
}

// LatestBOM returns the newest submitted BOM derived from treeName. ok is
// false when the tree name is blank or nothing has been derived yet.
func (s *Service) LatestBOM(ctx context.Context, treeName string) (bom string, ok bool, err error) {
	treeName = strings.TrimSpace(treeName)
	if treeName == "" {
		return "", false, nil
	}
	return s.trees.LatestBOM(ctx, treeName)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// run wraps one import with the limiter, the run timeout and metrics.
func (s *Service) run(ctx context.Context, kind Kind, fn func(context.Context) (*ImportLog, error)) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()

	metrics.ImportsActive.Inc()
	defer metrics.ImportsActive.Dec()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	log, err := fn(ctx)

	status := "ok"
	switch {
	case err != nil && IsAbort(err):
		status = "aborted"
	case err != nil:
		status = "failed"
	}
	metrics.RecordImport(string(kind), status, time.Since(start))

	if log != nil {
		metrics.RecordRows(string(kind), string(OutcomeCreated), log.Created)
		metrics.RecordRows(string(kind), string(OutcomeDuplicate), log.Duplicates)
		metrics.RecordRows(string(kind), string(OutcomeSkipped), log.Skipped)
		metrics.RecordRows(string(kind), string(OutcomeFailed), log.Errors)
	}
	return err
}

// requestRows loads a request and the rows of its attachment. At least a
// header row and one data row are guaranteed on success.
func (s *Service) requestRows(ctx context.Context, requestID string) (Request, [][]string, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, nil, err
	}
	if strings.TrimSpace(req.FileRef) == "" {
		return Request{}, nil, ErrMissingAttachment
	}

	rows, err := s.rows.Rows(ctx, req.FileRef)
	if err != nil {
		return Request{}, nil, err
	}
	if len(rows) < 2 {
		return Request{}, nil, ErrNoData
	}
	return req, rows, nil
}

// Extension returns the lower-cased extension of name if it is an
// accepted parts-list format.
func Extension(name string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(name)), "."))
	switch ext {
	case "csv", "xlsx", "xls":
		return ext, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	}
}
