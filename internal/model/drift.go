package model

import "time"

// DriftRecord is one observation of a source's signature. Exactly one record
// per source is current at any time.
type DriftRecord struct {
	ID            string              `json:"id" yaml:"id"`
	SourceID      string              `json:"source_id" yaml:"source_id"`
	SignatureHash string              `json:"signature_hash" yaml:"signature_hash"`
	Components    SignatureComponents `json:"components" yaml:"components"`
	FirstSeen     time.Time           `json:"first_seen" yaml:"first_seen"`
	LastSeen      time.Time           `json:"last_seen" yaml:"last_seen"`
	IsCurrent     bool                `json:"is_current" yaml:"is_current"`
}

// TypeChange is a column present in both signatures whose type changed.
type TypeChange struct {
	Column string        `json:"column" yaml:"column"`
	Old    PrimitiveType `json:"old" yaml:"old"`
	New    PrimitiveType `json:"new" yaml:"new"`
}

// ValueChange records a scalar component that differs between signatures.
type ValueChange struct {
	Old string `json:"old" yaml:"old"`
	New string `json:"new" yaml:"new"`
}

// SchemaDiff is the structural comparison of two signatures.
type SchemaDiff struct {
	AddedHeaders   []string     `json:"added_headers" yaml:"added_headers"`
	RemovedHeaders []string     `json:"removed_headers" yaml:"removed_headers"`
	TypeChanges    []TypeChange `json:"type_changes" yaml:"type_changes"`
	Format         *ValueChange `json:"format,omitempty" yaml:"format,omitempty"`
	Encoding       *ValueChange `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Delimiter      *ValueChange `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
}

// ChangedColumns returns every header touched by the diff, sorted as listed.
func (d *SchemaDiff) ChangedColumns() []string {
	out := make([]string, 0, len(d.AddedHeaders)+len(d.RemovedHeaders)+len(d.TypeChanges))
	out = append(out, d.AddedHeaders...)
	out = append(out, d.RemovedHeaders...)
	for _, tc := range d.TypeChanges {
		out = append(out, tc.Column)
	}
	return out
}

// DriftAlert is raised when a source's signature differs from its current record.
type DriftAlert struct {
	SourceID          string      `json:"source_id" yaml:"source_id"`
	PreviousSignature string      `json:"previous_signature" yaml:"previous_signature"`
	NewSignature      string      `json:"new_signature" yaml:"new_signature"`
	Diff              SchemaDiff  `json:"diff" yaml:"diff"`
	Previous          DriftRecord `json:"previous" yaml:"previous"`
}

// DriftResult is the outcome of a drift check: NoDrift (Alert nil) or an alert.
type DriftResult struct {
	Drift  bool        `json:"drift" yaml:"drift"`
	Record DriftRecord `json:"record" yaml:"record"`
	Alert  *DriftAlert `json:"alert,omitempty" yaml:"alert,omitempty"`
}
