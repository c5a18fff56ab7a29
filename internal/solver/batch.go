package solver

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/signature"
)

// shardBuffer is the per-column channel capacity.
const shardBuffer = 256

// BatchOptions tunes a multi-file solve.
type BatchOptions struct {
	// EarlyStop stops pulling files once every column is resolved.
	EarlyStop bool              `yaml:"early_stop" mapstructure:"early_stop"`
	Signature signature.Options `yaml:"signature" mapstructure:"signature"`
	// Comment marks preamble lines of delimited files. "none" disables it.
	Comment string `yaml:"comment" mapstructure:"comment"`
}

// DefaultBatchOptions returns options with early stopping enabled.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{EarlyStop: true, Signature: signature.DefaultOptions(), Comment: signature.DefaultComment}
}

// BatchResult is the outcome of solving every column of a corpus.
type BatchResult struct {
	Columns       []model.ColumnResult `json:"columns" yaml:"columns"`
	FilesConsumed int                  `json:"files_consumed" yaml:"files_consumed"`
	FilesTotal    int                  `json:"files_total" yaml:"files_total"`
	FilesSkipped  []string             `json:"files_skipped,omitempty" yaml:"files_skipped,omitempty"`
	EarlyStopped  bool                 `json:"early_stopped" yaml:"early_stopped"`
}

// Resolved reports whether every column reached the resolved state.
func (r *BatchResult) Resolved() bool {
	for _, c := range r.Columns {
		if c.Status != model.StatusResolved {
			return false
		}
	}
	return len(r.Columns) > 0
}

// Batch solves columns across files. Each column is owned by one goroutine
// fed through a channel; files are read in order by the caller's goroutine.
type Batch struct {
	det      *detect.Detector
	computer *signature.Computer
	opts     BatchOptions
}

// NewBatch returns a Batch. A nil det uses the default tables.
func NewBatch(det *detect.Detector, opts BatchOptions) *Batch {
	if det == nil {
		det = detect.Default()
	}
	if opts.Comment == "" {
		opts.Comment = signature.DefaultComment
	}
	return &Batch{det: det, computer: signature.NewComputer(det), opts: opts}
}

type cellMsg struct {
	value string
	file  string
	row   int64
	// barrier, when set, asks the shard for its IsResolved state instead.
	barrier chan<- bool
}

type shard struct {
	solver *ColumnSolver
	in     chan cellMsg
}

type batchRun struct {
	b      *Batch
	g      errgroup.Group
	shards map[string]*shard
	names  []string
}

// Solve reads paths in order and returns one result per column, sorted by
// column name. Files the signature engine reports as empty or binary are
// skipped.
func (b *Batch) Solve(ctx context.Context, paths []string) (*BatchResult, error) {
	r := &batchRun{b: b, shards: make(map[string]*shard)}
	res, err := r.feed(ctx, paths)
	for _, sh := range r.shards {
		close(sh.in)
	}
	if werr := r.g.Wait(); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(r.names)
	res.Columns = make([]model.ColumnResult, len(r.names))
	for i, name := range r.names {
		res.Columns[i] = r.shards[name].solver.Result()
	}
	return res, nil
}

func (r *batchRun) shardFor(name string) *shard {
	if sh, ok := r.shards[name]; ok {
		return sh
	}
	sh := &shard{solver: NewColumnSolver(name, r.b.det), in: make(chan cellMsg, shardBuffer)}
	r.shards[name] = sh
	r.names = append(r.names, name)
	r.g.Go(func() error {
		for m := range sh.in {
			if m.barrier != nil {
				m.barrier <- sh.solver.IsResolved()
				continue
			}
			sh.solver.AddValue(m.value, m.file, m.row)
		}
		return nil
	})
	return sh
}

func send(ctx context.Context, sh *shard, m cellMsg) error {
	select {
	case sh.in <- m:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "solver: batch cancelled")
	}
}

func (r *batchRun) feed(ctx context.Context, paths []string) (*BatchResult, error) {
	log := zap.L().With(zap.String("component", "solver.batch"))
	res := &BatchResult{FilesTotal: len(paths)}

	for i, path := range paths {
		skipped, err := r.feedFile(ctx, path)
		if err != nil {
			return nil, err
		}
		res.FilesConsumed++
		if skipped {
			res.FilesSkipped = append(res.FilesSkipped, path)
		}

		if !r.b.opts.EarlyStop || i == len(paths)-1 {
			continue
		}
		done, err := r.allResolved(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			res.EarlyStopped = true
			log.Info("all columns resolved, stopping early",
				zap.Int("files_consumed", res.FilesConsumed),
				zap.Int("files_total", res.FilesTotal),
			)
			break
		}
	}
	return res, nil
}

// allResolved is the barrier run between files.
func (r *batchRun) allResolved(ctx context.Context) (bool, error) {
	if len(r.shards) == 0 {
		return false, nil
	}
	acks := make([]chan bool, 0, len(r.shards))
	for _, name := range r.names {
		ack := make(chan bool, 1)
		if err := send(ctx, r.shards[name], cellMsg{barrier: ack}); err != nil {
			return false, err
		}
		acks = append(acks, ack)
	}
	all := true
	for _, ack := range acks {
		select {
		case ok := <-ack:
			all = all && ok
		case <-ctx.Done():
			return false, eris.Wrap(ctx.Err(), "solver: batch cancelled")
		}
	}
	return all, nil
}

func (r *batchRun) feedFile(ctx context.Context, path string) (skipped bool, err error) {
	log := zap.L().With(zap.String("component", "solver.batch"), zap.String("file", path))

	src, err := fetcher.OpenFile(path)
	if err != nil {
		return false, err
	}
	defer src.Close() //nolint:errcheck

	sig, err := r.b.computer.Compute(ctx, src, r.b.opts.Signature)
	if eris.Is(err, signature.ErrFileEmpty) {
		log.Warn("skipping empty file")
		return true, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "solver: signature %s", path)
	}
	comps := &sig.Signature.Components
	if comps.Format == model.FormatBinary {
		log.Warn("skipping binary file")
		return true, nil
	}

	if err := src.Rewind(); err != nil {
		return false, err
	}
	rd, err := fetcher.OpenRecords(src, fetcher.FramingOf(comps, commentByte(r.b.opts.Comment)))
	if err != nil {
		return false, eris.Wrapf(err, "solver: open %s", path)
	}

	shards := make([]*shard, len(comps.Columns))
	for i, col := range comps.Columns {
		shards[i] = r.shardFor(col.Name)
	}

	fileCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := fetcher.StreamRecords(fileCtx, rd)

	positional := !comps.Format.Keyed()
	skipHeader := positional && !comps.Headerless
	width := len(comps.Columns)
	var row int64
	for rec := range recCh {
		if skipHeader {
			skipHeader = false
			continue
		}
		if positional && rec.Cut(width) {
			continue
		}
		row++
		for i, sh := range shards {
			var v string
			if !rec.IsAbsent(i) {
				v = rec.Fields[i]
			}
			if err := send(ctx, sh, cellMsg{value: v, file: path, row: row}); err != nil {
				return false, err
			}
		}
	}
	for err := range errCh {
		return false, eris.Wrapf(err, "solver: read %s", path)
	}

	log.Debug("file consumed", zap.Int64("rows", row), zap.Int("columns", width))
	return false, nil
}

func commentByte(c string) byte {
	if c == "none" || c == "" {
		return 0
	}
	return c[0]
}
