package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/medsignal/medsignal/internal/api/middleware"
	"github.com/medsignal/medsignal/internal/api/response"
	"github.com/medsignal/medsignal/internal/store"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NewListNotificationsHandler returns an http.HandlerFunc for
// GET /api/v1/notifications. Supports ?unread=true and ?limit=N.
func NewListNotificationsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		unreadOnly := r.URL.Query().Get("unread") == "true"

		limit := defaultNotificationLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}
		if limit > maxNotificationLimit {
			limit = maxNotificationLimit
		}

		notifications, err := st.ListNotifications(r.Context(), userID, unreadOnly, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load notifications", nil)
			return
		}

		response.JSON(w, notifications)
	}
}

// NewMarkNotificationReadHandler returns an http.HandlerFunc for
// POST /api/v1/notifications/{notificationID}/read.
func NewMarkNotificationReadHandler(st store.Store) http.HandlerFunc {
	return notificationAction(st.MarkNotificationRead)
}

// NewDismissNotificationHandler returns an http.HandlerFunc for
// POST /api/v1/notifications/{notificationID}/dismiss.
func NewDismissNotificationHandler(st store.Store) http.HandlerFunc {
	return notificationAction(st.DismissNotification)
}

func notificationAction(action func(ctx context.Context, id, userID uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "notificationID must be a UUID", nil)
			return
		}

		if err := action(r.Context(), id, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Notification not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to update notification", nil)
			return
		}

		response.JSON(w, map[string]string{"status": "ok"})
	}
}
