package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"
)

func (s *Store) CreateCompany(_ context.Context, c model.Company) (model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := store.NormalizeCompany(c)
	if err != nil {
		return model.Company{}, err
	}
	for _, existing := range s.companies {
		if strings.EqualFold(existing.Name, c.Name) {
			return model.Company{}, store.ErrConflict
		}
	}

	c.ID = s.nextID("companies")
	c.CreatedAt = time.Now().UTC()
	s.companies[c.ID] = c
	return c, nil
}

func (s *Store) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCompanies(_ context.Context, f store.DirectoryFilter) ([]model.Company, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Company, 0, len(s.companies))
	for _, c := range s.companies {
		if f.Query != "" && !containsFold(c.Name, f.Query) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Offset, f.Limit), len(out), nil
}

func (s *Store) UpdateCompany(_ context.Context, c model.Company) (model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := store.NormalizeCompany(c)
	if err != nil {
		return model.Company{}, err
	}
	current, ok := s.companies[c.ID]
	if !ok {
		return model.Company{}, store.ErrNotFound
	}
	for id, existing := range s.companies {
		if id != c.ID && strings.EqualFold(existing.Name, c.Name) {
			return model.Company{}, store.ErrConflict
		}
	}

	current.Name = c.Name
	s.companies[c.ID] = current
	return current, nil
}

func (s *Store) DeleteCompany(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[id]; !ok {
		return store.ErrNotFound
	}
	for vid, v := range s.visitors {
		if v.CompanyID != nil && *v.CompanyID == id {
			v.CompanyID = nil
			s.visitors[vid] = v
		}
	}
	delete(s.companies, id)
	return nil
}

func (s *Store) CreateVisitor(_ context.Context, v model.Visitor) (model.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := store.NormalizeVisitor(v)
	if err != nil {
		return model.Visitor{}, err
	}
	if v.CompanyID != nil {
		if _, ok := s.companies[*v.CompanyID]; !ok {
			return model.Visitor{}, store.ErrNotFound
		}
	}
	for _, existing := range s.visitors {
		if existing.Identification == v.Identification {
			return model.Visitor{}, store.ErrConflict
		}
	}

	v.ID = s.nextID("visitors")
	v.CreatedAt = time.Now().UTC()
	s.visitors[v.ID] = v
	return v, nil
}

func (s *Store) GetVisitor(_ context.Context, id int64) (*model.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (s *Store) ListVisitors(_ context.Context, f store.DirectoryFilter) ([]model.Visitor, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Visitor, 0, len(s.visitors))
	for _, v := range s.visitors {
		if f.Query != "" && !containsFold(v.FullName(), f.Query) && !containsFold(v.Identification, f.Query) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Offset, f.Limit), len(out), nil
}

func (s *Store) UpdateVisitor(_ context.Context, v model.Visitor) (model.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := store.NormalizeVisitor(v)
	if err != nil {
		return model.Visitor{}, err
	}
	current, ok := s.visitors[v.ID]
	if !ok {
		return model.Visitor{}, store.ErrNotFound
	}
	if v.CompanyID != nil {
		if _, ok := s.companies[*v.CompanyID]; !ok {
			return model.Visitor{}, store.ErrNotFound
		}
	}
	for id, existing := range s.visitors {
		if id != v.ID && existing.Identification == v.Identification {
			return model.Visitor{}, store.ErrConflict
		}
	}

	v.CreatedAt = current.CreatedAt
	s.visitors[v.ID] = v
	return v, nil
}

func (s *Store) DeleteVisitor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visitors[id]; !ok {
		return store.ErrNotFound
	}
	for vid, visit := range s.visits {
		if visit.VisitorID == id {
			delete(s.visits, vid)
		}
	}
	delete(s.visitors, id)
	return nil
}

func (s *Store) CreateEmployee(_ context.Context, e model.Employee) (model.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := store.NormalizeEmployee(e)
	if err != nil {
		return model.Employee{}, err
	}

	e.ID = s.nextID("employees")
	e.CreatedAt = time.Now().UTC()
	s.employees[e.ID] = e
	return e, nil
}

func (s *Store) GetEmployee(_ context.Context, id int64) (*model.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEmployees(_ context.Context, f store.DirectoryFilter) ([]model.Employee, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if f.Query != "" && !containsFold(e.FullName(), f.Query) && !containsFold(e.Email, f.Query) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Offset, f.Limit), len(out), nil
}

func (s *Store) CreateLocation(_ context.Context, l model.Location) (model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := store.NormalizeLocation(l)
	if err != nil {
		return model.Location{}, err
	}
	for _, existing := range s.locations {
		if strings.EqualFold(existing.Name, l.Name) {
			return model.Location{}, store.ErrConflict
		}
	}

	l.ID = s.nextID("locations")
	l.CreatedAt = time.Now().UTC()
	s.locations[l.ID] = l
	return l, nil
}

func (s *Store) GetLocation(_ context.Context, id int64) (*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (s *Store) ListLocations(_ context.Context, f store.DirectoryFilter) ([]model.Location, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Location, 0, len(s.locations))
	for _, l := range s.locations {
		if f.Query != "" && !containsFold(l.Name, f.Query) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Offset, f.Limit), len(out), nil
}
