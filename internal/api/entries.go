package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/orchestrator"
	"github.com/nidhogg/tappy/internal/store"
)

const (
	titleMax   = 255
	previewMax = 150
)

type createEntryRequest struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	ContentJSON string `json:"content_json"`
}

type createEntryResponse struct {
	Entry *store.Entry `json:"entry"`
	JobID string       `json:"job_id"`
	Queue int          `json:"queue_depth"`
}

type entryListItem struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title,omitempty"`
	Preview          string            `json:"preview"`
	Status           store.EntryStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	ActionsTriggered int               `json:"actions_triggered"`
}

// createEntry stores the entry and queues it for planning. It never waits
// for the worker.
func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	title := req.Title
	if title == "" {
		title = titleFromContent(req.ContentJSON)
	}
	entry := &store.Entry{
		Title:       clipRunes(title, titleMax),
		Text:        req.Text,
		ContentJSON: req.ContentJSON,
		Status:      store.EntryQueued,
	}
	if err := h.deps.Repo.CreateEntry(r.Context(), entry); err != nil {
		h.logger.Error("create entry failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save entry")
		return
	}

	job := orchestrator.NewJob(entry.ID, entry.Text)
	if err := h.deps.Queue.TryEnqueue(job); err != nil {
		h.logger.Warn("entry not queued", zap.Int64("entry", entry.ID), zap.Error(err))
		if serr := h.deps.Repo.SetEntryStatus(r.Context(), entry.ID, store.EntryFailed); serr != nil {
			h.logger.Error("set entry status failed", zap.Int64("entry", entry.ID), zap.Error(serr))
		}
		status := http.StatusServiceUnavailable
		if errors.Is(err, orchestrator.ErrQueueFull) {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, err.Error())
		return
	}
	h.logger.Info("entry queued", zap.Int64("entry", entry.ID), zap.String("job", job.ID))

	writeJSON(w, http.StatusCreated, createEntryResponse{
		Entry: entry,
		JobID: job.ID,
		Queue: h.deps.Queue.Len(),
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Repo.ListEntries(r.Context(), pageFrom(r))
	if err != nil {
		h.logger.Error("list entries failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list entries")
		return
	}
	items := make([]entryListItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, entryListItem{
			ID:               e.ID,
			Title:            e.Title,
			Preview:          preview(e.Text, previewMax),
			Status:           e.Status,
			CreatedAt:        e.CreatedAt,
			ActionsTriggered: e.ActionsTriggered,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	e, err := h.deps.Repo.GetEntry(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "journal entry not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.deps.Repo.DeleteEntry(r.Context(), id); err != nil {
		h.storeError(w, err, "journal entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) storeError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	h.logger.Error("store request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// titleFromContent returns the text of the first non-empty header block of
// an Editor.js document.
func titleFromContent(contentJSON string) string {
	if contentJSON == "" {
		return ""
	}
	var doc struct {
		Blocks []struct {
			Type string `json:"type"`
			Data struct {
				Text string `json:"text"`
			} `json:"data"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(contentJSON), &doc); err != nil {
		return ""
	}
	for _, b := range doc.Blocks {
		if b.Type == "header" && b.Data.Text != "" {
			return b.Data.Text
		}
	}
	return ""
}

// preview shortens text to max runes, backing up to the last space.
func preview(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	cut := string([]rune(text)[:max])
	if i := strings.LastIndex(cut, " "); i >= 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
