package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/signature"
)

var (
	watchPrefix   string
	watchDebounce time.Duration
	watchInitial  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-sign files as they change and report drift",
	Long: "Watches a directory tree. Each created or modified file is signed once it " +
		"settles and checked for drift under the source id <prefix><relative path>.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("drift"); err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w, err := newFileWatcher(args[0], signature.NewComputer(cfg.Detector()), drift.NewDetector(st), watchOptions{
			Prefix:    watchPrefix,
			Debounce:  watchDebounce,
			Initial:   watchInitial,
			Signature: cfg.Signature,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		w.onResult = func(path string, res *model.DriftResult) {
			render(out, outputFormat, map[string]any{"path": path, "result": res}) //nolint:errcheck
		}
		return w.Run(ctx)
	},
}

type watchOptions struct {
	Prefix    string
	Debounce  time.Duration
	Initial   bool
	Signature signature.Options
}

// fileWatcher signs settled files under root and feeds them to a drift detector.
type fileWatcher struct {
	root     string
	fs       *fsnotify.Watcher
	computer *signature.Computer
	drift    *drift.Detector
	opts     watchOptions

	mu       sync.Mutex
	pending  map[string]time.Time
	onResult func(path string, res *model.DriftResult)
}

func newFileWatcher(root string, computer *signature.Computer, det *drift.Detector, opts watchOptions) (*fileWatcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, eris.Wrapf(err, "watch: stat %s", root)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("watch: %s is not a directory", root)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "watch: create watcher")
	}
	return &fileWatcher{
		root:     filepath.Clean(root),
		fs:       fw,
		computer: computer,
		drift:    det,
		opts:     opts,
		pending:  make(map[string]time.Time),
		onResult: func(string, *model.DriftResult) {},
	}, nil
}

// sourceID names the drift source for a watched path.
func (w *fileWatcher) sourceID(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	return w.opts.Prefix + filepath.ToSlash(rel)
}

// addTree watches dir and every non-hidden subdirectory. Files found are
// queued when queue is set.
func (w *fileWatcher) addTree(dir string, queue bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return eris.Wrapf(w.fs.Add(path), "watch: add %s", path)
		}
		if queue {
			w.enqueue(path, time.Time{})
		}
		return nil
	})
}

func (w *fileWatcher) enqueue(path string, at time.Time) {
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

// Run blocks until ctx is cancelled or the watcher fails.
func (w *fileWatcher) Run(ctx context.Context) error {
	defer w.fs.Close() //nolint:errcheck
	log := zap.L().With(zap.String("component", "watch"), zap.String("root", w.root))

	if err := w.addTree(w.root, w.opts.Initial); err != nil {
		return err
	}
	log.Info("watching", zap.Duration("debounce", w.opts.Debounce))

	tick := time.NewTicker(min(w.opts.Debounce/2, 100*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev, log)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-tick.C:
			w.flush(ctx, log)
		}
	}
}

func (w *fileWatcher) handle(ev fsnotify.Event, log *zap.Logger) {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			if err := w.addTree(ev.Name, true); err != nil {
				log.Warn("watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
		return
	}
	w.enqueue(ev.Name, time.Now())
}

// flush checks every queued file that has been quiet for the debounce window.
func (w *fileWatcher) flush(ctx context.Context, log *zap.Logger) {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.opts.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		res, err := w.check(ctx, path)
		if err != nil {
			log.Warn("drift check failed", zap.String("path", path), zap.Error(err))
			continue
		}
		w.onResult(path, res)
	}
}

func (w *fileWatcher) check(ctx context.Context, path string) (*model.DriftResult, error) {
	src, err := fetcher.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer src.Close() //nolint:errcheck

	sig, err := w.computer.Compute(ctx, src, w.opts.Signature)
	if err != nil {
		return nil, err
	}
	return w.drift.Detect(ctx, w.sourceID(path), &sig.Signature)
}

func init() {
	watchCmd.Flags().StringVar(&watchPrefix, "source-prefix", "", "prefix prepended to each file's relative path to form its source id")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is signed")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", true, "check every existing file on start")
	rootCmd.AddCommand(watchCmd)
}
