package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/service"
)

type reportRequest struct {
	Description string `json:"description"`
}

// pathID reads the {id} route parameter. It writes a 400 and returns false
// when the parameter is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, string(service.KindInvalidFormat), "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleVisitCreate(w http.ResponseWriter, r *http.Request) {
	var req service.CreateVisitRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.UserID = userIDFromContext(r.Context())

	v, err := s.visits.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.bus.Publish(EventVisitCreated, v.ID)
	writeOK(w, http.StatusCreated, map[string]any{"id": v.ID, "visit": v})
}

func (s *Server) handleVisitSearch(w http.ResponseWriter, r *http.Request) {
	var req service.ListVisitsRequest
	if r.ContentLength != 0 && !readJSON(w, r, &req) {
		return
	}
	page, err := s.visits.List(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"total": page.Total, "rows": page.Rows})
}

func (s *Server) handleVisitGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := s.visits.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"visit": v, "state": v.State()})
}

func (s *Server) handleVisitDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.visits.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.bus.Publish(EventVisitDeleted, id)
	writeOK(w, http.StatusOK, map[string]any{"id": id})
}

// transition runs one lifecycle step and publishes event on success.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, event string, fn func(ctx context.Context, id int64) (model.Visit, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := fn(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.bus.Publish(event, v.ID)
	writeOK(w, http.StatusOK, map[string]any{"visit": v, "state": v.State()})
}

func (s *Server) handleVisitEntry(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, EventVisitEntered, s.visits.MarkEntry)
}

func (s *Server) handleVisitExit(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, EventVisitExited, s.visits.MarkExit)
}

func (s *Server) handleVisitReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if r.ContentLength != 0 && !readJSON(w, r, &req) {
		return
	}
	s.transition(w, r, EventVisitReported, func(ctx context.Context, id int64) (model.Visit, error) {
		return s.visits.MarkReported(ctx, id, req.Description)
	})
}

func (s *Server) handleVisitReportToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := s.visits.ToggleReport(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	event := EventVisitReportCleared
	if v.ReportFlag {
		event = EventVisitReported
	}
	s.bus.Publish(event, v.ID)
	writeOK(w, http.StatusOK, map[string]any{"visit": v, "state": v.State()})
}

func (s *Server) handleVisitReportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	st, err := s.visits.ReportStatus(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"report_flag":        st.ReportFlag,
		"report_description": st.ReportDescription,
	})
}
