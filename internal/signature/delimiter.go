package signature

import (
	"bytes"
	"math"

	"github.com/sells-group/schemaproof/internal/fetcher"
)

// delimiterCandidates in tie-break order.
var delimiterCandidates = []rune{',', '\t', '|', ';'}

// sniffRecords is how many records the delimiter sniffer inspects.
const sniffRecords = 5

// sniffDelimiter picks the candidate whose per-record separator count is
// consistent (population std-dev < 1), at least 1 on average, and highest.
// Counting happens on parsed records so quoted separators and quoted line
// breaks do not skew it. It returns 0 when no candidate qualifies.
func sniffDelimiter(text []byte, comment byte) rune {
	var best rune
	bestMean := 0.0
	for _, cand := range delimiterCandidates {
		counts := separatorCounts(text, cand, comment)
		if len(counts) == 0 {
			continue
		}
		mean, std := meanStd(counts)
		if std >= 1 || mean < 1 {
			continue
		}
		if mean > bestMean {
			best, bestMean = cand, mean
		}
	}
	return best
}

// separatorCounts parses the first records of text with delim. An
// unterminated last record may be cut by the sniff window and is ignored
// unless it is the only one.
func separatorCounts(text []byte, delim rune, comment byte) []float64 {
	tr, err := fetcher.NewTextReader(bytes.NewReader(text), fetcher.EncodingUTF8)
	if err != nil {
		return nil
	}
	dr := fetcher.NewDelimitedReader(tr, fetcher.DelimitedOptions{Delimiter: delim, Comment: comment})
	var counts []float64
	for len(counts) < sniffRecords {
		rec, err := dr.Read()
		if err != nil {
			break
		}
		if len(counts) > 0 && (!rec.Terminated || rec.Truncated) {
			break
		}
		counts = append(counts, float64(len(rec.Fields)-1))
	}
	return counts
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		std += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(std / float64(len(xs)))
}

// DelimiterLabel is the component value for a delimiter rune.
func DelimiterLabel(d rune) string {
	if d == 0 {
		return ""
	}
	return string(d)
}
