// Package profile assembles the point-in-time medical context used by every
// analysis run.
package profile

import (
	"context"
	"log/slog"
	"time"

	"github.com/medsignal/medsignal/internal/store"
	"github.com/medsignal/medsignal/pkg/models"
)

const (
	symptomWindow = 30 * 24 * time.Hour
	labWindow     = 90 * 24 * time.Hour
	maxSymptoms   = 10
	maxLabResults = 15
)

// Builder reads domain entities and assembles MedicalProfiles.
type Builder struct {
	store store.Store
}

func NewBuilder(s store.Store) *Builder {
	return &Builder{store: s}
}

// Build assembles the profile for the trigger's user: active medications,
// symptoms from the last 30 days (cap 10), lab results from the last 90 days
// (cap 15), and active conditions. Storage failures degrade to an empty
// profile; callers must treat an empty profile as "no analysis possible".
func (b *Builder) Build(ctx context.Context, trigger models.TriggerEvent) models.MedicalProfile {
	now := time.Now().UTC()
	p := models.MedicalProfile{
		UserID:  trigger.UserID,
		Trigger: trigger,
	}

	meds, err := b.store.ListActiveMedications(ctx, trigger.UserID)
	if err != nil {
		slog.Warn("profile: medications unavailable", "user_id", trigger.UserID, "error", err)
	} else {
		p.Medications = meds
	}

	symptoms, err := b.store.ListRecentSymptoms(ctx, trigger.UserID, now.Add(-symptomWindow), maxSymptoms)
	if err != nil {
		slog.Warn("profile: symptoms unavailable", "user_id", trigger.UserID, "error", err)
	} else {
		p.RecentSymptoms = symptoms
	}

	labs, err := b.store.ListRecentLabResults(ctx, trigger.UserID, now.Add(-labWindow), maxLabResults)
	if err != nil {
		slog.Warn("profile: lab results unavailable", "user_id", trigger.UserID, "error", err)
	} else {
		p.LabResults = labs
	}

	conds, err := b.store.ListActiveConditions(ctx, trigger.UserID)
	if err != nil {
		slog.Warn("profile: conditions unavailable", "user_id", trigger.UserID, "error", err)
	} else {
		p.Conditions = conds
	}

	return p
}
