package signature

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/highwayhash"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
)

// contentHashKey is the fixed highwayhash key. Changing it changes every
// stored content hash.
var contentHashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Result is a computed signature and the warnings met while reading.
type Result struct {
	Signature model.Signature `json:"signature" yaml:"signature"`
	Warnings  model.Warnings  `json:"warnings" yaml:"warnings"`
}

// Computer derives structural signatures. It holds no per-call state and is
// safe for concurrent use.
type Computer struct {
	det *detect.Detector
}

// NewComputer returns a Computer classifying values with det. A nil det
// uses the default tables.
func NewComputer(det *detect.Detector) *Computer {
	if det == nil {
		det = detect.Default()
	}
	return &Computer{det: det}
}

// Detector returns the classifier the computer folds values with.
func (c *Computer) Detector() *detect.Detector { return c.det }

// Compute reads src and returns its signature. The source is consumed; a
// seekable source is read more than once.
func (c *Computer) Compute(ctx context.Context, src *fetcher.Source, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "signature"), zap.String("source", src.Name()))

	hasher, err := highwayhash.New64(contentHashKey)
	if err != nil {
		return nil, eris.Wrap(err, "signature: init content hash")
	}
	in := &ctxReader{ctx: ctx, r: src.Reader()}

	if src.Seekable() {
		if _, err := io.Copy(hasher, in); err != nil {
			return nil, c.fail(ctx, src, err)
		}
		if err := src.Rewind(); err != nil {
			return nil, c.fail(ctx, src, err)
		}
	}

	head, err := readHead(in)
	if err != nil {
		return nil, c.fail(ctx, src, err)
	}

	var body, tee io.Reader
	if src.Seekable() {
		if err := src.Rewind(); err != nil {
			return nil, c.fail(ctx, src, err)
		}
		body = in
	} else {
		hasher.Write(head) //nolint:errcheck
		tee = io.TeeReader(in, hasher)
		body = io.MultiReader(bytes.NewReader(head), tee)
	}

	res, err := sniff(head, src.Ext(), opts.EncodingOverride)
	if err != nil {
		return nil, c.fail(ctx, src, err)
	}

	comps := model.SignatureComponents{
		Format:             res.format,
		Encoding:           res.encoding,
		EncodingConfidence: res.confidence,
		Headers:            []string{},
		TypeMask:           []model.PrimitiveType{},
		Columns:            []model.Column{},
	}

	var warnings model.Warnings
	if res.format != model.FormatBinary {
		sm := &sampler{det: c.det, opts: opts, src: src, in: in, body: body, sniff: res}
		out, err := sm.run()
		if err != nil {
			return nil, c.fail(ctx, src, err)
		}
		comps.Delimiter = out.delimiter
		comps.Headerless = out.headerless
		comps.Truncated = out.truncated
		buildColumns(&comps, out.names, out.keys, out.cols, out.rows, opts.DateFormatHint)
		warnings = out.warnings
		warnings.Truncated = out.truncated
	}

	if tee != nil {
		if _, err := io.Copy(io.Discard, tee); err != nil {
			return nil, c.fail(ctx, src, err)
		}
	}
	comps.ContentHash = fmt.Sprintf("%016x", hasher.Sum64())

	var sig model.Signature
	if res.format == model.FormatBinary {
		sig = binarySignature(comps, src.Ext(), magicPrefix(head))
	} else {
		sig = Sign(comps)
	}

	log.Debug("signature computed",
		zap.String("format", string(comps.Format)),
		zap.Int("columns", comps.ColumnCount),
		zap.Int64("data_rows", comps.DataRows),
		zap.String("hash", sig.Hash),
	)
	if !warnings.Empty() {
		log.Info("signature warnings", zap.Any("warnings", warnings))
	}

	return &Result{Signature: sig, Warnings: warnings}, nil
}

// fail maps an error met while reading to the returned error. Cancellation
// wins over whatever the readers reported.
func (c *Computer) fail(ctx context.Context, src *fetcher.Source, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return eris.Wrap(cerr, "signature: compute cancelled")
	}
	if eris.Is(err, ErrFileEmpty) || eris.Is(err, ErrTooManyColumns) || eris.Is(err, ErrUnreadable) {
		return err
	}
	return unreadable(src.Name(), err)
}

// readHead reads up to the sniff window.
func readHead(r io.Reader) ([]byte, error) {
	buf := make([]byte, sniffWindow)
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return buf[:n], err
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
