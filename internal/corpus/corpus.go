// Package corpus expands directories, ZIP archives and remote URLs into
// files, computes their signatures concurrently and groups files that share
// a structure.
package corpus

import (
	"context"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/outlier"
	"github.com/sells-group/schemaproof/internal/signature"
)

// Options tunes a corpus scan.
type Options struct {
	Concurrency int
	Signature   signature.Options
	// Outliers also runs the outlier scanner over every signed file.
	Outliers bool
	Outlier  outlier.Options
	// WorkDir holds downloads and extracted archives; empty uses the OS
	// temp directory.
	WorkDir string
	ZIP     fetcher.ZIPLimits
}

// FileResult is the outcome for one file of the corpus.
type FileResult struct {
	// Path is the display path; ZIP entries read "archive.zip!entry".
	Path      string           `json:"path" yaml:"path"`
	Signature *model.Signature `json:"signature,omitempty" yaml:"signature,omitempty"`
	Warnings  model.Warnings   `json:"warnings" yaml:"warnings"`
	Outliers  *outlier.Result  `json:"outliers,omitempty" yaml:"outliers,omitempty"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the outcome of a corpus scan, files sorted by path.
type Report struct {
	Files  []FileResult `json:"files" yaml:"files"`
	Groups []Group      `json:"groups" yaml:"groups"`
	Failed int          `json:"failed" yaml:"failed"`
}

// Scanner runs signature and outlier computation over a corpus.
type Scanner struct {
	computer *signature.Computer
	outliers *outlier.Scanner
	remote   *fetcher.Remote
	opts     Options
}

// NewScanner returns a Scanner. A nil det uses the default detector tables;
// a nil remote rejects URL inputs.
func NewScanner(det *detect.Detector, remote *fetcher.Remote, opts Options) *Scanner {
	if det == nil {
		det = detect.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Scanner{
		computer: signature.NewComputer(det),
		outliers: outlier.NewScanner(det, opts.Outlier),
		remote:   remote,
		opts:     opts,
	}
}

// Scan expands inputs and signs every file. Per-file failures are recorded
// in the report; only cancellation and expansion errors abort the scan.
func (s *Scanner) Scan(ctx context.Context, inputs []string) (*Report, error) {
	log := zap.L().With(zap.String("component", "corpus"))

	work, err := os.MkdirTemp(s.opts.WorkDir, "schemaproof-")
	if err != nil {
		return nil, eris.Wrap(err, "corpus: create work dir")
	}
	defer os.RemoveAll(work) //nolint:errcheck

	entries, err := s.expand(ctx, inputs, work)
	if err != nil {
		return nil, err
	}
	log.Info("scanning corpus", zap.Int("files", len(entries)), zap.Int("concurrency", s.opts.Concurrency))

	var (
		mu      sync.Mutex
		results = make([]FileResult, 0, len(entries))
		failed  atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, e := range entries {
		g.Go(func() error {
			res, err := s.scanFile(gctx, e)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				log.Warn("file failed", zap.String("path", e.name), zap.Error(err))
				res = FileResult{Path: e.name, Error: err.Error()}
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "corpus: scan cancelled")
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	rep := &Report{Files: results, Failed: int(failed.Load())}
	rep.Groups = GroupBySignature(results, false)

	log.Info("corpus scanned",
		zap.Int("files", len(results)),
		zap.Int("failed", rep.Failed),
		zap.Int("groups", len(rep.Groups)),
	)
	return rep, nil
}

func (s *Scanner) scanFile(ctx context.Context, e entry) (FileResult, error) {
	src, err := fetcher.OpenFile(e.path)
	if err != nil {
		return FileResult{}, err
	}
	defer src.Close() //nolint:errcheck

	sig, err := s.computer.Compute(ctx, src, s.opts.Signature)
	if err != nil {
		return FileResult{}, err
	}
	res := FileResult{Path: e.name, Signature: &sig.Signature, Warnings: sig.Warnings}

	if s.opts.Outliers && sig.Signature.Components.Format != model.FormatBinary {
		out, err := s.outliers.Scan(ctx, src, &sig.Signature)
		if err != nil {
			return FileResult{}, err
		}
		res.Outliers = out
	}
	return res, nil
}
