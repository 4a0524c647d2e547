// Package pharmacovigilance queries adverse-event data sources for
// drug/reaction co-occurrence evidence.
package pharmacovigilance

import (
	"context"
	"errors"
)

// Sentinel errors for pharmacovigilance source failures.
var (
	ErrSourceUnreachable = errors.New("pharmacovigilance source unreachable")
	ErrQueryError        = errors.New("pharmacovigilance query error")
	ErrTimeout           = errors.New("pharmacovigilance query timeout")
)

// Evidence is the adverse-event co-occurrence data for one drug/reaction
// pair. OnsetMinDays/OnsetMaxDays describe the documented onset window in
// days after medication start.
type Evidence struct {
	Drug           string
	Reaction       string
	TotalReports   int
	SeriousReports int
	OnsetMinDays   int
	OnsetMaxDays   int

	// SourceName records which source produced the evidence. Chained
	// sources answer with whichever member held data for the pair.
	SourceName string
}

// Source looks up adverse-event evidence for a drug/reaction pair.
// A (nil, nil) return means the source holds no data for the pair, which is
// not an error: the caller escalates the pair elsewhere.
type Source interface {
	Lookup(ctx context.Context, drug, reaction string) (*Evidence, error)
	Name() string
}

// Default onset window attached to report-count evidence. Adverse-event
// report data carries counts, not onset timing, so a broad 1 to 30 day
// window is assumed for timing scoring.
const (
	defaultOnsetMinDays = 1
	defaultOnsetMaxDays = 30
)
