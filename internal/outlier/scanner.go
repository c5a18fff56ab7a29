// Package outlier finds cells whose values do not fit the type mask of a
// previously computed signature.
package outlier

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/detect"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/lattice"
	"github.com/sells-group/schemaproof/internal/model"
)

// Defaults for Options.
const (
	DefaultTopN = 50
	DefaultCap  = 1000
)

// MaxValueBytes bounds the cell value carried by a report.
const MaxValueBytes = 100

// Options tunes a scan.
type Options struct {
	// TopN is how many reports are returned, most severe first.
	TopN int `yaml:"top_n" mapstructure:"top_n"`
	// Cap bounds the reports accumulated before scanning stops.
	Cap int `yaml:"cap" mapstructure:"cap"`
	// StrictNulls reports nulls in columns whose sample held none.
	StrictNulls bool `yaml:"strict_nulls" mapstructure:"strict_nulls"`
	// Comment marks preamble lines of delimited files. "none" disables it.
	Comment string `yaml:"comment" mapstructure:"comment"`
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.Cap <= 0 {
		o.Cap = DefaultCap
	}
	if o.Comment == "" {
		o.Comment = "#"
	}
	return o
}

func (o Options) commentByte() byte {
	if o.Comment == "none" {
		return 0
	}
	return o.Comment[0]
}

// Result is the outcome of one scan.
type Result struct {
	Outliers    []model.OutlierReport `json:"outliers" yaml:"outliers"`
	Total       int64                 `json:"total" yaml:"total"`
	RowsScanned int64                 `json:"rows_scanned" yaml:"rows_scanned"`
	Capped      bool                  `json:"capped" yaml:"capped"`
	Warnings    model.Warnings        `json:"warnings" yaml:"warnings"`
}

// Scanner checks every cell of a file against a signature in one pass.
type Scanner struct {
	det  *detect.Detector
	opts Options
}

// NewScanner returns a Scanner. A nil det uses the default tables.
func NewScanner(det *detect.Detector, opts Options) *Scanner {
	if det == nil {
		det = detect.Default()
	}
	return &Scanner{det: det, opts: opts.withDefaults()}
}

// Scan reads src once and reports every cell whose detected type is not
// below its column type. A seekable source is rewound first.
func (s *Scanner) Scan(ctx context.Context, src *fetcher.Source, sig *model.Signature) (*Result, error) {
	comps := &sig.Components
	if comps.Format == model.FormatBinary {
		return nil, eris.Errorf("outlier: %s is binary", src.Name())
	}
	if src.Seekable() {
		if err := src.Rewind(); err != nil {
			return nil, eris.Wrap(err, "outlier: rewind source")
		}
	}
	log := zap.L().With(zap.String("component", "outlier"), zap.String("source", src.Name()))

	rd, err := fetcher.OpenRecords(src, fetcher.FramingOf(comps, s.opts.commentByte()))
	if err != nil {
		return nil, eris.Wrapf(err, "outlier: open %s", src.Name())
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := fetcher.StreamRecords(scanCtx, rd)

	positional := !comps.Format.Keyed()
	skipHeader := positional && !comps.Headerless
	width := len(comps.Columns)
	acc := &accumulator{cap: s.opts.Cap}
	res := &Result{}

	for rec := range recCh {
		if skipHeader {
			skipHeader = false
			continue
		}
		if positional && rec.Cut(width) {
			res.Warnings.Truncated = true
			continue
		}
		res.RowsScanned++
		if positional && len(rec.Fields) != width {
			res.Warnings.RaggedRows++
		}
		if !s.checkRow(rec, res.RowsScanned, comps.Columns, acc) {
			cancel()
			break
		}
	}
	for range recCh { //nolint:revive // drain
	}

	var streamErr error
	for err := range errCh {
		streamErr = err
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "outlier: scan cancelled")
	}
	if streamErr != nil && !acc.capped {
		return nil, eris.Wrapf(streamErr, "outlier: read %s", src.Name())
	}

	res.Warnings.Merge(rd.Warnings())
	res.Total = int64(len(acc.reports))
	res.Capped = acc.capped
	res.Outliers = acc.top(s.opts.TopN)

	log.Debug("outlier scan complete",
		zap.Int64("rows", res.RowsScanned),
		zap.Int64("outliers", res.Total),
		zap.Bool("capped", res.Capped),
	)
	return res, nil
}

// checkRow records the outliers of one row. It returns false once the cap
// is exceeded.
func (s *Scanner) checkRow(rec fetcher.Record, row int64, cols []model.Column, acc *accumulator) bool {
	for i, col := range cols {
		var value string
		actual := model.TypeNull
		if i < len(rec.Fields) && !rec.IsAbsent(i) {
			value = rec.Fields[i]
			actual = s.det.Detect(value)
		}

		var class model.DeviationClass
		switch {
		case actual == model.TypeNull:
			if !s.opts.StrictNulls || col.Nullable || col.Type == model.TypeUnknown {
				continue
			}
			class = model.DeviationNullable
		case lattice.IsSubtype(actual, col.Type):
			continue
		case lattice.Widen(actual, col.Type) == model.TypeString:
			class = model.DeviationCoercionFail
		default:
			class = model.DeviationWidening
		}

		ok := acc.add(model.OutlierReport{
			RowIndex:    row,
			ColumnIndex: i,
			Column:      col.Name,
			Expected:    col.Type,
			Actual:      actual,
			Value:       clipValue(value),
			Deviation:   class,
			Severity:    class.Severity(),
		})
		if !ok {
			return false
		}
	}
	return true
}

// clipValue cuts v to at most MaxValueBytes bytes, backing off to the last
// complete rune.
func clipValue(v string) string {
	if len(v) <= MaxValueBytes {
		return v
	}
	cut := MaxValueBytes
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut]
}

// accumulator holds reports up to cap.
type accumulator struct {
	cap       int
	reports   []model.OutlierReport
	capped    bool
	cappedRow int64
}

func (a *accumulator) add(r model.OutlierReport) bool {
	if len(a.reports) >= a.cap {
		a.capped = true
		a.cappedRow = r.RowIndex
		return false
	}
	a.reports = append(a.reports, r)
	return true
}

// top orders reports by severity desc, row asc, column asc and keeps n.
// The truncation marker, if any, comes last.
func (a *accumulator) top(n int) []model.OutlierReport {
	sort.SliceStable(a.reports, func(i, j int) bool {
		x, y := a.reports[i], a.reports[j]
		if x.Severity != y.Severity {
			return x.Severity > y.Severity
		}
		if x.RowIndex != y.RowIndex {
			return x.RowIndex < y.RowIndex
		}
		return x.ColumnIndex < y.ColumnIndex
	})
	out := make([]model.OutlierReport, 0, min(n, len(a.reports))+1)
	out = append(out, a.reports[:min(n, len(a.reports))]...)
	if a.capped {
		out = append(out, model.OutlierReport{
			RowIndex:    a.cappedRow,
			ColumnIndex: -1,
			Deviation:   model.DeviationTruncated,
			Severity:    model.SeverityNone,
		})
	}
	return out
}
