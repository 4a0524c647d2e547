package pharmacovigilance

import (
	"context"
	"log/slog"
)

// FallbackSource chains a live source with a curated backup. The backup
// answers when the primary fails or holds no data for a pair, so a live
// outage degrades to the built-in knowledge table instead of losing the
// pair entirely.
type FallbackSource struct {
	primary Source
	backup  Source
}

func NewFallbackSource(primary, backup Source) *FallbackSource {
	return &FallbackSource{primary: primary, backup: backup}
}

func (f *FallbackSource) Name() string {
	return f.primary.Name() + "+" + f.backup.Name()
}

func (f *FallbackSource) Lookup(ctx context.Context, drug, reaction string) (*Evidence, error) {
	ev, err := f.primary.Lookup(ctx, drug, reaction)
	if err != nil {
		slog.Warn("primary pharmacovigilance source failed, using backup",
			"source", f.primary.Name(), "drug", drug, "reaction", reaction, "error", err)
		return f.backup.Lookup(ctx, drug, reaction)
	}
	if ev == nil {
		return f.backup.Lookup(ctx, drug, reaction)
	}
	return ev, nil
}

var _ Source = (*FallbackSource)(nil)
