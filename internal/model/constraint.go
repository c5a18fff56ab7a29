package model

// DateFormat is a candidate textual layout for Date values.
type DateFormat string

const (
	DateFormatISO DateFormat = "iso"
	DateFormatUS  DateFormat = "us"
	DateFormatEU  DateFormat = "eu"
)

// DateType returns the PrimitiveType a single surviving date format resolves to.
func (f DateFormat) DateType() PrimitiveType {
	switch f {
	case DateFormatISO:
		return TypeDateISO
	case DateFormatUS:
		return TypeDateSlashUS
	case DateFormatEU:
		return TypeDateSlashEU
	default:
		return TypeDateSlashAmbiguous
	}
}

// ResolutionStatus is the terminal state of a column's constraint solving.
type ResolutionStatus string

const (
	StatusResolved      ResolutionStatus = "resolved"
	StatusAmbiguous     ResolutionStatus = "ambiguous"
	StatusContradiction ResolutionStatus = "contradiction"
	StatusNoValidType   ResolutionStatus = "no_valid_type"
)

// EliminationEvidence records why a type or format candidate was removed.
// Eliminated is a type name ("Int64") or a qualified format ("Date:us").
type EliminationEvidence struct {
	Eliminated     string `json:"eliminated" yaml:"eliminated"`
	BecauseOfValue string `json:"because_of_value" yaml:"because_of_value"`
	FilePath       string `json:"file_path" yaml:"file_path"`
	Row            int64  `json:"row" yaml:"row"`
	Reason         string `json:"reason" yaml:"reason"`
}

// Contradiction groups two mutually exclusive proofs observed in one column.
type Contradiction struct {
	Column   string              `json:"column" yaml:"column"`
	Kind     string              `json:"kind" yaml:"kind"`
	First    EliminationEvidence `json:"first" yaml:"first"`
	Second   EliminationEvidence `json:"second" yaml:"second"`
	Describe string              `json:"describe" yaml:"describe"`
}

// ValueDistribution summarizes how a column's non-null values were judged.
type ValueDistribution struct {
	ByType    map[string]int64 `json:"by_type" yaml:"by_type"`
	USProofs  int64            `json:"us_proofs" yaml:"us_proofs"`
	EUProofs  int64            `json:"eu_proofs" yaml:"eu_proofs"`
	Ambiguous int64            `json:"ambiguous_dates" yaml:"ambiguous_dates"`
}

// ColumnResult is the outcome of solving one column.
type ColumnResult struct {
	Column           string                `json:"column" yaml:"column"`
	Status           ResolutionStatus      `json:"status" yaml:"status"`
	Type             PrimitiveType         `json:"type" yaml:"type"`
	Format           DateFormat            `json:"format,omitempty" yaml:"format,omitempty"`
	Candidates       []PrimitiveType       `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	FormatCandidates []DateFormat          `json:"format_candidates,omitempty" yaml:"format_candidates,omitempty"`
	Evidence         []EliminationEvidence `json:"evidence" yaml:"evidence"`
	Nullable         bool                  `json:"nullable" yaml:"nullable"`
	NullSentinels    []string              `json:"null_sentinels,omitempty" yaml:"null_sentinels,omitempty"`
	Contradictions   []Contradiction       `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`
	Distribution     *ValueDistribution    `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	Suggestion       string                `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}
