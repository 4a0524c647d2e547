package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/medsignal/medsignal/internal/api/middleware"
	"github.com/medsignal/medsignal/internal/api/response"
	"github.com/medsignal/medsignal/pkg/models"
)

// Analyzer defines the orchestrator operations the handlers depend on.
type Analyzer interface {
	ProcessEvent(ctx context.Context, trigger models.TriggerEvent) (*models.Job, error)
	RunComprehensive(ctx context.Context, trigger models.TriggerEvent) (*models.Job, error)
}

type triggerRequest struct {
	TriggerType string         `json:"trigger_type"`
	EntityName  string         `json:"entity_name"`
	EventData   map[string]any `json:"event_data"`
	RelatedIDs  struct {
		MedicationID *uuid.UUID `json:"medication_id"`
		SymptomID    *uuid.UUID `json:"symptom_id"`
		LabResultID  *uuid.UUID `json:"lab_result_id"`
		DocumentID   *uuid.UUID `json:"document_id"`
	} `json:"related_ids"`
}

func (req triggerRequest) toTrigger(userID uuid.UUID) models.TriggerEvent {
	return models.TriggerEvent{
		UserID:      userID,
		TriggerType: req.TriggerType,
		EntityName:  req.EntityName,
		EventData:   req.EventData,
		RelatedIDs: models.RelatedEntityIDs{
			MedicationID: req.RelatedIDs.MedicationID,
			SymptomID:    req.RelatedIDs.SymptomID,
			LabResultID:  req.RelatedIDs.LabResultID,
			DocumentID:   req.RelatedIDs.DocumentID,
		},
	}
}

// NewEventHandler returns an http.HandlerFunc for POST /api/v1/events.
// Analysis runs in the background; the response is the pending job.
func NewEventHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.TriggerType == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "trigger_type is required", nil)
			return
		}

		job, err := svc.ProcessEvent(r.Context(), req.toTrigger(userID))
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to schedule analysis", nil)
			return
		}

		response.Accepted(w, job)
	}
}

// NewComprehensiveHandler returns an http.HandlerFunc for
// POST /api/v1/analyses/comprehensive.
func NewComprehensiveHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		// Body is optional: a bare POST runs a full analysis.
		var req triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.TriggerType == "" {
			req.TriggerType = "comprehensive_requested"
		}

		job, err := svc.RunComprehensive(r.Context(), req.toTrigger(userID))
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to schedule analysis", nil)
			return
		}

		response.Accepted(w, job)
	}
}
