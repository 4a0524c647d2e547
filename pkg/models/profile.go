// Package models contains shared data models used across the medsignal codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MedicationSnapshot is a point-in-time view of a medication as seen by the
// analysis engine. StartDate may be the zero time when the record carries no
// parseable date; consumers must treat it as unknown, never as "now".
type MedicationSnapshot struct {
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage,omitempty"`
	Frequency string    `json:"frequency,omitempty"`
	StartDate time.Time `json:"start_date,omitempty"`
	EndDate   time.Time `json:"end_date,omitempty"`
	Status    string    `json:"status"`
}

// SymptomSnapshot is a reported symptom within the profile window.
type SymptomSnapshot struct {
	Name       string    `json:"name"`
	Severity   string    `json:"severity,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	ReportedAt time.Time `json:"reported_at,omitempty"`
}

// LabSnapshot is a lab measurement within the profile window.
type LabSnapshot struct {
	TestName       string    `json:"test_name"`
	Value          float64   `json:"value"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Date           time.Time `json:"date,omitempty"`
}

// ConditionSnapshot is an active diagnosed condition.
type ConditionSnapshot struct {
	Name        string    `json:"name"`
	DiagnosedAt time.Time `json:"diagnosed_at,omitempty"`
	Status      string    `json:"status"`
}

// RelatedEntityIDs carries the optional entity ids supplied by the trigger
// event. They are threaded through to resulting notifications unchanged,
// never re-derived by the engine.
type RelatedEntityIDs struct {
	MedicationID *uuid.UUID `json:"medication_id,omitempty"`
	SymptomID    *uuid.UUID `json:"symptom_id,omitempty"`
	LabResultID  *uuid.UUID `json:"lab_result_id,omitempty"`
	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
}

// TriggerEvent is the payload callers supply to start an analysis run.
// TriggerType is an open string enum (new_medication, symptom_reported,
// lab_result, document_processed, *_updated, *_deleted).
type TriggerEvent struct {
	UserID      uuid.UUID        `json:"user_id"`
	TriggerType string           `json:"trigger_type"`
	EntityName  string           `json:"entity_name,omitempty"`
	EventData   map[string]any   `json:"event_data,omitempty"`
	RelatedIDs  RelatedEntityIDs `json:"related_ids,omitempty"`
}

// MedicalProfile is the point-in-time medical context assembled for one
// analysis run. It is ephemeral: rebuilt on every run and never persisted
// as-is (only an anonymized subset is cached).
type MedicalProfile struct {
	UserID         uuid.UUID            `json:"user_id"`
	Medications    []MedicationSnapshot `json:"medications"`
	RecentSymptoms []SymptomSnapshot    `json:"recent_symptoms"`
	LabResults     []LabSnapshot        `json:"lab_results"`
	Conditions     []ConditionSnapshot  `json:"health_conditions"`
	Trigger        TriggerEvent         `json:"trigger_event"`
}

// IsEmpty reports whether the profile carries no clinical data at all.
// An empty profile means "no analysis possible".
func (p MedicalProfile) IsEmpty() bool {
	return len(p.Medications) == 0 &&
		len(p.RecentSymptoms) == 0 &&
		len(p.LabResults) == 0 &&
		len(p.Conditions) == 0
}

// AnonymizedContext is the profile subset safe to store long-term in the
// semantic cache: clinical fields only, no user identifiers.
type AnonymizedContext struct {
	Medications []MedicationSnapshot `json:"medications"`
	Symptoms    []SymptomSnapshot    `json:"symptoms"`
	LabResults  []LabSnapshot        `json:"lab_results"`
	Conditions  []ConditionSnapshot  `json:"conditions"`
}

// Anonymize strips user identifiers from the profile, keeping only the
// clinical fields.
func (p MedicalProfile) Anonymize() AnonymizedContext {
	return AnonymizedContext{
		Medications: p.Medications,
		Symptoms:    p.RecentSymptoms,
		LabResults:  p.LabResults,
		Conditions:  p.Conditions,
	}
}
