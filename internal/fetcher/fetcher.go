// Package fetcher reads tabular sources: byte sources with optional seeking,
// text decoding, delimited/JSON/NDJSON/XML/XLSX record readers, and remote
// corpora over HTTP, FTP and ZIP archives.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Lister enumerates the files of a remote directory.
type Lister interface {
	List(ctx context.Context, dirURL string) ([]string, error)
}

// Remote routes downloads to the HTTP or FTP fetcher by URL scheme.
type Remote struct {
	HTTP Fetcher
	FTP  Fetcher
}

// IsRemote reports whether s is an http, https or ftp URL.
func IsRemote(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return u.Host != ""
	default:
		return false
	}
}

// Expand returns the file URLs an input names. An ftp URL ending in "/" is
// listed when the FTP fetcher can list; any other URL is returned as is.
func (r *Remote) Expand(ctx context.Context, rawURL string) ([]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	if u.Scheme != "ftp" || !strings.HasSuffix(u.Path, "/") {
		return []string{rawURL}, nil
	}
	l, ok := r.FTP.(Lister)
	if !ok {
		return nil, eris.Errorf("fetch: cannot list %s", rawURL)
	}
	urls, err := l.List(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: list %s", rawURL)
	}
	return urls, nil
}

// Fetch downloads rawURL into dir, keeping the URL's base name so the
// extension still hints the format. Returns the local path.
func (r *Remote) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	var f Fetcher
	switch u.Scheme {
	case "http", "https":
		f = r.HTTP
	case "ftp":
		f = r.FTP
	}
	if f == nil {
		return "", eris.Errorf("fetch: no fetcher for scheme %q", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	dest := filepath.Join(dir, name)
	if _, err := f.DownloadToFile(ctx, rawURL, dest); err != nil {
		return "", eris.Wrapf(err, "fetch: download %s", rawURL)
	}
	return dest, nil
}
