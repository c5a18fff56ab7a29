// Package drift tracks the signature of named sources over time and raises an
// alert with a structural diff when a source's signature changes.
package drift

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/model"
)

var (
	// ErrCurrentExists is returned by Store.Insert when the source already has
	// a current record.
	ErrCurrentExists = eris.New("drift: source already has a current record")
	// ErrStale is returned by Store.Supersede and Store.Touch when the record
	// is no longer current.
	ErrStale = eris.New("drift: record is not current")
)

// Store persists drift records. At most one record per source is current.
type Store interface {
	// Current returns the current record for the source, or nil when the
	// source has never been seen.
	Current(ctx context.Context, sourceID string) (*model.DriftRecord, error)
	// Insert stores rec as the first current record of its source.
	Insert(ctx context.Context, rec *model.DriftRecord) error
	// Touch moves last_seen of the current record forward.
	Touch(ctx context.Context, id string, seen time.Time) error
	// Supersede marks prevID as no longer current and inserts next as the
	// current record, atomically.
	Supersede(ctx context.Context, prevID string, next *model.DriftRecord) error
	// History lists every record of the source, newest first.
	History(ctx context.Context, sourceID string) ([]model.DriftRecord, error)
}

// Detector compares incoming signatures against the current record of a source.
type Detector struct {
	store Store
	now   func() time.Time
	locks sync.Map
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source used for first_seen and last_seen.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector returns a Detector backed by store.
func NewDetector(store Store, opts ...Option) *Detector {
	d := &Detector{store: store, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Store returns the backing store.
func (d *Detector) Store() Store { return d.store }

func (d *Detector) lock(sourceID string) func() {
	v, _ := d.locks.LoadOrStore(sourceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Detect records sig as the latest observation of sourceID. A source seen for
// the first time, or seen again with the same hash, yields no drift. A
// different hash supersedes the current record and returns an alert.
func (d *Detector) Detect(ctx context.Context, sourceID string, sig *model.Signature) (*model.DriftResult, error) {
	if sourceID == "" {
		return nil, eris.New("drift: empty source id")
	}
	if sig == nil || sig.Hash == "" {
		return nil, eris.New("drift: signature has no hash")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "drift: detect cancelled")
	}

	unlock := d.lock(sourceID)
	defer unlock()

	log := zap.L().With(zap.String("component", "drift"), zap.String("source", sourceID))
	now := d.now().UTC()

	cur, err := d.store.Current(ctx, sourceID)
	if err != nil {
		return nil, eris.Wrapf(err, "drift: load current record for %s", sourceID)
	}

	if cur == nil {
		rec := newRecord(sourceID, sig, now)
		if err := d.store.Insert(ctx, &rec); err != nil {
			return nil, eris.Wrapf(err, "drift: insert first record for %s", sourceID)
		}
		log.Info("source registered", zap.String("signature", sig.Hash))
		return &model.DriftResult{Record: rec}, nil
	}

	if cur.SignatureHash == sig.Hash {
		if err := d.store.Touch(ctx, cur.ID, now); err != nil {
			return nil, eris.Wrapf(err, "drift: touch record %s", cur.ID)
		}
		rec := *cur
		rec.LastSeen = now
		log.Debug("signature unchanged", zap.String("signature", sig.Hash))
		return &model.DriftResult{Record: rec}, nil
	}

	rec := newRecord(sourceID, sig, now)
	if err := d.store.Supersede(ctx, cur.ID, &rec); err != nil {
		return nil, eris.Wrapf(err, "drift: supersede record %s", cur.ID)
	}

	prev := *cur
	prev.IsCurrent = false
	alert := &model.DriftAlert{
		SourceID:          sourceID,
		PreviousSignature: prev.SignatureHash,
		NewSignature:      sig.Hash,
		Diff:              Diff(&prev.Components, &sig.Components),
		Previous:          prev,
	}
	log.Warn("signature drift",
		zap.String("previous", prev.SignatureHash),
		zap.String("current", sig.Hash),
		zap.Strings("changed_columns", alert.Diff.ChangedColumns()),
	)
	return &model.DriftResult{Drift: true, Record: rec, Alert: alert}, nil
}

// History lists the records of sourceID, newest first.
func (d *Detector) History(ctx context.Context, sourceID string) ([]model.DriftRecord, error) {
	recs, err := d.store.History(ctx, sourceID)
	return recs, eris.Wrapf(err, "drift: history for %s", sourceID)
}

func newRecord(sourceID string, sig *model.Signature, now time.Time) model.DriftRecord {
	return model.DriftRecord{
		ID:            uuid.NewString(),
		SourceID:      sourceID,
		SignatureHash: sig.Hash,
		Components:    sig.Components,
		FirstSeen:     now,
		LastSeen:      now,
		IsCurrent:     true,
	}
}
