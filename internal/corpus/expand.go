package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/fetcher"
)

// entry is one file to sign: where it lives on disk and how it is reported.
type entry struct {
	path string
	name string
}

func (s *Scanner) expand(ctx context.Context, inputs []string, work string) ([]entry, error) {
	var out []entry
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "corpus: expand cancelled")
		}

		if fetcher.IsRemote(in) {
			if s.remote == nil {
				return nil, eris.Errorf("corpus: remote input %s needs a fetcher", in)
			}
			urls, err := s.remote.Expand(ctx, in)
			if err != nil {
				return nil, err
			}
			for j, u := range urls {
				dir := filepath.Join(work, fmt.Sprintf("remote-%d-%d", i, j))
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, eris.Wrap(err, "corpus: create download dir")
				}
				local, err := s.remote.Fetch(ctx, u, dir)
				if err != nil {
					return nil, err
				}
				got, err := s.expandFile(local, u, work, i*100_000+j)
				if err != nil {
					return nil, err
				}
				out = append(out, got...)
			}
			continue
		}

		info, err := os.Stat(in)
		if err != nil {
			return nil, eris.Wrapf(err, "corpus: stat %s", in)
		}
		if !info.IsDir() {
			got, err := s.expandFile(in, in, work, i)
			if err != nil {
				return nil, err
			}
			out = append(out, got...)
			continue
		}

		var files []string
		err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != in && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "corpus: walk %s", in)
		}
		sort.Strings(files)
		for j, f := range files {
			got, err := s.expandFile(f, f, work, i*100_000+j)
			if err != nil {
				return nil, err
			}
			out = append(out, got...)
		}
	}
	return out, nil
}

// expandFile returns the file itself, or the entries of a ZIP archive
// extracted under work.
func (s *Scanner) expandFile(path, name, work string, n int) ([]entry, error) {
	if !fetcher.IsZIP(path) {
		return []entry{{path: path, name: name}}, nil
	}
	dest := filepath.Join(work, fmt.Sprintf("zip-%d", n))
	paths, err := fetcher.ExtractZIP(path, dest, s.opts.ZIP)
	if err != nil {
		return nil, eris.Wrapf(err, "corpus: extract %s", name)
	}
	out := make([]entry, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(dest, p)
		if err != nil {
			return nil, eris.Wrap(err, "corpus: entry path")
		}
		out[i] = entry{path: p, name: name + "!" + filepath.ToSlash(rel)}
	}
	return out, nil
}
