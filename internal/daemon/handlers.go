package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	dto := s.stats
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, dto)
}

func (s *Service) handleBudgets(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	dto := s.budgets
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, dto)
}

func (s *Service) handleCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	dto := s.categories
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, dto)
}

type addCategoryRequest struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// handleAddCategory creates a category in the set named by the {kind} path
// segment ("expenditure" or "income").
func (s *Service) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	kind := model.CategoryKind(mux.Vars(r)["kind"])

	var req addCategoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	cat, err := viewmodel.AddCategory(r.Context(), s.cfg.Deps.Store, s.cfg.Deps.Collections, kind, viewmodel.NewCategory{
		Title: req.Title,
		Icon:  req.Icon,
		Color: model.Color(req.Color),
	})
	switch {
	case errors.Is(err, viewmodel.ErrInvalidKind):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, viewmodel.ErrDuplicateTitle):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, pipeline.ErrMissingTitle):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.WithError(err).Error("adding category")
		writeError(w, http.StatusInternalServerError, "could not add category")
		return
	}

	writeJSON(w, http.StatusCreated, categoryDTOs([]model.Category{cat})[0])
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send the current chart immediately.
	s.mu.RLock()
	current := Event{Type: EventStatistics, Timestamp: s.cfg.Now(), Payload: s.stats}
	s.mu.RUnlock()
	writeSSE(w, current)
	flusher.Flush()

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
