package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/service"
	"github.com/YiberMelo/ChronosSuite/internal/store"
)

const maxDirectoryPageSize = 200

type visitorRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Identification string `json:"identification"`
	CompanyID      *int64 `json:"company_id"`
	Gender         string `json:"gender"`
	BloodType      string `json:"blood_type"`
	PhoneNumber    string `json:"phone_number"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	DateOfBirth    string `json:"date_of_birth"`
}

func (s *Server) registerDirectoryRoutes(r chi.Router) {
	r.Post("/visitors", s.handleVisitorCreate)
	r.Get("/visitors", listHandler(s, "visitors", s.store.ListVisitors))
	r.Get("/visitors/{id}", getHandler(s, "visitor", s.store.GetVisitor))
	r.Put("/visitors/{id}", s.handleVisitorUpdate)
	r.Delete("/visitors/{id}", deleteHandler(s, s.store.DeleteVisitor))

	r.Post("/employees", createHandler(s, "employee", s.store.CreateEmployee))
	r.Get("/employees", listHandler(s, "employees", s.store.ListEmployees))
	r.Get("/employees/{id}", getHandler(s, "employee", s.store.GetEmployee))

	r.Post("/locations", createHandler(s, "location", s.store.CreateLocation))
	r.Get("/locations", listHandler(s, "locations", s.store.ListLocations))
	r.Get("/locations/{id}", getHandler(s, "location", s.store.GetLocation))

	r.Post("/companies", createHandler(s, "company", s.store.CreateCompany))
	r.Get("/companies", listHandler(s, "companies", s.store.ListCompanies))
	r.Get("/companies/{id}", getHandler(s, "company", s.store.GetCompany))
	r.Put("/companies/{id}", s.handleCompanyUpdate)
	r.Delete("/companies/{id}", deleteHandler(s, s.store.DeleteCompany))
}

func directoryFilter(r *http.Request) (store.DirectoryFilter, bool) {
	q := r.URL.Query()
	f := store.DirectoryFilter{Query: strings.TrimSpace(q.Get("query")), Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, false
		}
		f.Limit = min(n, maxDirectoryPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, false
		}
		f.Offset = n
	}
	return f, true
}

func createHandler[T any](s *Server, name string, create func(context.Context, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if !readJSON(w, r, &in) {
			return
		}
		out, err := create(r.Context(), in)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.bus.Publish(EventDirectory, 0)
		writeOK(w, http.StatusCreated, map[string]any{name: out})
	}
}

func listHandler[T any](s *Server, name string, list func(context.Context, store.DirectoryFilter) ([]T, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := directoryFilter(r)
		if !ok {
			writeError(w, http.StatusBadRequest, string(service.KindInvalidFormat), "limit and offset must be non-negative integers")
			return
		}
		items, total, err := list(r.Context(), f)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeOK(w, http.StatusOK, map[string]any{name: items, "total": total})
	}
}

func getHandler[T any](s *Server, name string, get func(context.Context, int64) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		item, err := get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{name: item})
	}
}

func deleteHandler(s *Server, del func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := del(r.Context(), id); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.bus.Publish(EventDirectory, 0)
		writeOK(w, http.StatusOK, map[string]any{"id": id})
	}
}

// visitor converts the request body. date_of_birth may be a bare date or a
// full timestamp.
func (req visitorRequest) visitor() (model.Visitor, bool) {
	v := model.Visitor{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Identification: req.Identification,
		CompanyID:      req.CompanyID,
		Gender:         req.Gender,
		BloodType:      req.BloodType,
		PhoneNumber:    req.PhoneNumber,
		Email:          req.Email,
		Address:        req.Address,
	}
	if dob := strings.TrimSpace(req.DateOfBirth); dob != "" {
		t, err := time.Parse("2006-01-02", dob)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, dob); err != nil {
				return v, false
			}
		}
		t = t.UTC()
		v.DateOfBirth = &t
	}
	return v, true
}

func (s *Server) handleVisitorCreate(w http.ResponseWriter, r *http.Request) {
	var req visitorRequest
	if !readJSON(w, r, &req) {
		return
	}
	v, ok := req.visitor()
	if !ok {
		writeError(w, http.StatusBadRequest, string(service.KindInvalidFormat), "date_of_birth is not a valid date")
		return
	}

	created, err := s.store.CreateVisitor(r.Context(), v)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.bus.Publish(EventDirectory, 0)
	writeOK(w, http.StatusCreated, map[string]any{"visitor": created})
}

// handleVisitorUpdate replaces every editable field; omitted fields are
// cleared.
func (s *Server) handleVisitorUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req visitorRequest
	if !readJSON(w, r, &req) {
		return
	}
	v, ok := req.visitor()
	if !ok {
		writeError(w, http.StatusBadRequest, string(service.KindInvalidFormat), "date_of_birth is not a valid date")
		return
	}
	v.ID = id

	updated, err := s.store.UpdateVisitor(r.Context(), v)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.bus.Publish(EventDirectory, 0)
	writeOK(w, http.StatusOK, map[string]any{"visitor": updated})
}

func (s *Server) handleCompanyUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var c model.Company
	if !readJSON(w, r, &c) {
		return
	}
	c.ID = id

	updated, err := s.store.UpdateCompany(r.Context(), c)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.bus.Publish(EventDirectory, 0)
	writeOK(w, http.StatusOK, map[string]any{"company": updated})
}
