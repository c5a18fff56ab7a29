package fetcher

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Source is a byte stream with an optional seek capability and size hint.
// A Source is consumed by one reader at a time.
type Source struct {
	name   string
	r      io.Reader
	seeker io.ReadSeeker
	size   int64
	closer io.Closer
}

// NewSource wraps r. When r is an io.ReadSeeker the source is seekable and,
// if size is negative, the size is measured by seeking to the end.
func NewSource(name string, r io.Reader, size int64) (*Source, error) {
	s := &Source{name: name, r: r, size: size}
	if rs, ok := r.(io.ReadSeeker); ok {
		s.seeker = rs
		if size < 0 {
			end, err := rs.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, eris.Wrap(err, "source: measure size")
			}
			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				return nil, eris.Wrap(err, "source: rewind")
			}
			s.size = end
		}
	}
	return s, nil
}

// BytesSource returns a seekable in-memory source.
func BytesSource(name string, b []byte) *Source {
	r := bytes.NewReader(b)
	return &Source{name: name, r: r, seeker: r, size: int64(len(b))}
}

// StreamSource returns an unseekable source over r.
func StreamSource(name string, r io.Reader) *Source {
	return &Source{name: name, r: onlyReader{r}, size: -1}
}

// OpenFile opens path as a seekable source. The caller must Close it.
func OpenFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "source: stat %s", path)
	}
	if info.IsDir() {
		f.Close() //nolint:errcheck
		return nil, eris.Errorf("source: %s is a directory", path)
	}
	return &Source{name: path, r: f, seeker: f, size: info.Size(), closer: f}, nil
}

// Name returns the path or logical name of the source.
func (s *Source) Name() string { return s.name }

// Ext returns the lowercased extension including the dot, or "".
func (s *Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.name))
}

// Seekable reports whether the source supports random access.
func (s *Source) Seekable() bool { return s.seeker != nil }

// Size returns the size hint in bytes, or -1 when unknown.
func (s *Source) Size() int64 { return s.size }

// Reader returns the underlying stream at its current position.
func (s *Source) Reader() io.Reader { return s.r }

// Seek positions the source at the absolute offset off.
func (s *Source) Seek(off int64) error {
	if s.seeker == nil {
		return eris.New("source: not seekable")
	}
	_, err := s.seeker.Seek(off, io.SeekStart)
	return eris.Wrapf(err, "source: seek %d", off)
}

// Rewind positions a seekable source back at the start.
func (s *Source) Rewind() error {
	return s.Seek(0)
}

// ReaderAt returns an io.ReaderAt over the source when the stream provides one.
func (s *Source) ReaderAt() (io.ReaderAt, bool) {
	ra, ok := s.r.(io.ReaderAt)
	return ra, ok && s.size >= 0
}

// Close releases the file handle of sources created by OpenFile.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// onlyReader hides Seek and ReadAt from io.Reader implementations.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }
