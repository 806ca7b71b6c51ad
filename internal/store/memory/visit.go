package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"
)

func (s *Store) CreateVisit(_ context.Context, v model.Visit) (model.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visitors[v.VisitorID]; !ok {
		return model.Visit{}, store.ErrNotFound
	}
	if _, ok := s.employees[v.AuthorizedEmployeeID]; !ok {
		return model.Visit{}, store.ErrNotFound
	}
	if v.LocationID != nil {
		if _, ok := s.locations[*v.LocationID]; !ok {
			return model.Visit{}, store.ErrNotFound
		}
	}

	for _, existing := range s.visits {
		if existing.VisitorID == v.VisitorID &&
			existing.LocationKey() == v.LocationKey() &&
			existing.ScheduledEntryTime.Equal(v.ScheduledEntryTime) {
			return model.Visit{}, store.ErrConflict
		}
	}

	v.ID = s.nextID("visits")
	s.visits[v.ID] = v
	return v, nil
}

func (s *Store) GetVisit(_ context.Context, id int64) (*model.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (s *Store) FindVisit(_ context.Context, k store.VisitKey) (*model.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *model.Visit
	for _, v := range s.visits {
		if v.VisitorID != k.VisitorID || v.LocationKey() != k.LocationID {
			continue
		}
		sameEntry := v.ScheduledEntryTime.Equal(k.EntryTime) ||
			(v.EntryTime != nil && v.EntryTime.Equal(k.EntryTime))
		if !sameEntry {
			continue
		}
		if found == nil || v.ID < found.ID {
			match := v
			found = &match
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) UpdateVisit(_ context.Context, id int64, fn store.VisitUpdateFn) (model.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visits[id]
	if !ok {
		return model.Visit{}, store.ErrNotFound
	}

	if err := fn(&v); err != nil {
		return model.Visit{}, err
	}
	v.ID = id
	s.visits[id] = v
	return v, nil
}

func (s *Store) DeleteVisit(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visits[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.visits, id)
	return nil
}

func (s *Store) ListVisits(_ context.Context, q store.VisitQuery) ([]model.VisitRow, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sortKey := q.Sort
	if sortKey == "" {
		sortKey = store.SortByID
		q.Desc = true
	}

	out := make([]model.VisitRow, 0, len(s.visits))
	for _, v := range s.visits {
		row := s.visitRow(v)
		if !matchVisit(row, q.Filter) {
			continue
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := compareVisitRows(out[i], out[j], sortKey, q.Desc); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})

	total := len(out)
	return page(out, q.Offset, q.Limit), total, nil
}

func (s *Store) visitRow(v model.Visit) model.VisitRow {
	row := model.VisitRow{Visit: v, State: v.State()}
	if visitor, ok := s.visitors[v.VisitorID]; ok {
		row.VisitorFullName = visitor.FullName()
	}
	if emp, ok := s.employees[v.AuthorizedEmployeeID]; ok {
		row.AuthorizedEmployeeFullName = emp.FullName()
	}
	if v.LocationID != nil {
		if loc, ok := s.locations[*v.LocationID]; ok {
			row.LocationName = loc.Name
		}
	}
	return row
}

func matchVisit(r model.VisitRow, f store.VisitFilter) bool {
	if f.VisitorID != 0 && r.VisitorID != f.VisitorID {
		return false
	}
	if f.LocationID != 0 && r.LocationKey() != f.LocationID {
		return false
	}
	if f.HasEntered != nil && r.HasEntered != *f.HasEntered {
		return false
	}
	if f.HasExited != nil && r.HasExited != *f.HasExited {
		return false
	}
	if f.ReportFlag != nil && r.ReportFlag != *f.ReportFlag {
		return false
	}
	if f.IsImmediateVisit != nil && r.IsImmediateVisit != *f.IsImmediateVisit {
		return false
	}
	if f.CarriedObjects != "" && !containsFold(r.CarriedObjects, f.CarriedObjects) {
		return false
	}
	if f.VisitPurpose != "" && !containsFold(r.VisitPurpose, f.VisitPurpose) {
		return false
	}
	if f.VisitorFullName != "" && !containsFold(r.VisitorFullName, f.VisitorFullName) {
		return false
	}
	if f.AuthorizedEmployeeFullName != "" && !containsFold(r.AuthorizedEmployeeFullName, f.AuthorizedEmployeeFullName) {
		return false
	}
	if f.LocationName != "" && !containsFold(r.LocationName, f.LocationName) {
		return false
	}
	if f.EntryDate != nil && !sameDay(r.EntryTime, *f.EntryDate) {
		return false
	}
	if f.ExitDate != nil && !sameDay(r.ExitTime, *f.ExitDate) {
		return false
	}
	return true
}

func sameDay(t *time.Time, day time.Time) bool {
	if t == nil {
		return false
	}
	a := t.UTC()
	b := day.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// compareVisitRows orders a and b by key. Missing times sort last in both
// directions, matching "nulls last" in the SQL stores.
func compareVisitRows(a, b model.VisitRow, key store.VisitSortKey, desc bool) int {
	var c int
	switch key {
	case store.SortByVisitorFullName:
		c = strings.Compare(strings.ToLower(a.VisitorFullName), strings.ToLower(b.VisitorFullName))
	case store.SortByAuthorizedEmployeeFullName:
		c = strings.Compare(strings.ToLower(a.AuthorizedEmployeeFullName), strings.ToLower(b.AuthorizedEmployeeFullName))
	case store.SortByLocationName:
		c = strings.Compare(strings.ToLower(a.LocationName), strings.ToLower(b.LocationName))
	case store.SortByCarriedObjects:
		c = strings.Compare(strings.ToLower(a.CarriedObjects), strings.ToLower(b.CarriedObjects))
	case store.SortByVisitPurpose:
		c = strings.Compare(strings.ToLower(a.VisitPurpose), strings.ToLower(b.VisitPurpose))
	case store.SortByReportDescription:
		c = strings.Compare(strings.ToLower(a.ReportDescription), strings.ToLower(b.ReportDescription))
	case store.SortByEntryTime:
		return compareOptionalTime(a.EntryTime, b.EntryTime, desc)
	case store.SortByExitTime:
		return compareOptionalTime(a.ExitTime, b.ExitTime, desc)
	case store.SortByScheduledEntryTime:
		c = a.ScheduledEntryTime.Compare(b.ScheduledEntryTime)
	case store.SortByScheduledExitTime:
		c = a.ScheduledExitTime.Compare(b.ScheduledExitTime)
	case store.SortByCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	default:
		c = compareInt64(a.ID, b.ID)
	}
	if desc {
		return -c
	}
	return c
}

func compareOptionalTime(a, b *time.Time, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c := a.Compare(*b)
	if desc {
		return -c
	}
	return c
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
