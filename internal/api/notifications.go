package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/store"
)

const notificationNotFound = "inbox item not found"

var notificationStatuses = map[string]bool{
	"pending":            true,
	"needs_confirmation": true,
	"completed":          true,
	"dismissed":          true,
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Repo.ListNotifications(r.Context(), pageFrom(r))
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list notifications")
		return
	}
	if list == nil {
		list = []*store.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	n, err := h.deps.Repo.GetNotification(r.Context(), id)
	if err != nil {
		h.storeError(w, err, notificationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) updateNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var u store.NotificationUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if limit := h.deps.Limits.TitleMax; u.Title != nil && utf8.RuneCountInString(*u.Title) > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("title must have at most %d characters", limit))
		return
	}
	if u.Status != nil && !notificationStatuses[*u.Status] {
		writeError(w, http.StatusBadRequest, "unknown status "+*u.Status)
		return
	}
	n, err := h.deps.Repo.UpdateNotification(r.Context(), id, u)
	if err != nil {
		h.storeError(w, err, notificationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	n, err := h.deps.Repo.MarkNotificationRead(r.Context(), id)
	if err != nil {
		h.storeError(w, err, notificationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.deps.Repo.DeleteNotification(r.Context(), id); err != nil {
		h.storeError(w, err, notificationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
