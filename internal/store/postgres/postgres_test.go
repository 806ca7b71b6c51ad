package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB resets the public schema and applies the embedded schema.
// It skips tests if DATABASE_URL is not set.
func setupTestDB(t *testing.T) (*Store, func()) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping PostgreSQL tests")
	}

	s, err := NewStore(databaseURL)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.pool.Exec(ctx, `
		DROP SCHEMA public CASCADE;
		CREATE SCHEMA public;
		GRANT ALL ON SCHEMA public TO public;
	`)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	return s, func() {
		s.Close()
	}
}

type fixture struct {
	company  model.Company
	visitor  model.Visitor
	employee model.Employee
	location model.Location
}

func seedDirectory(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()

	company, err := s.CreateCompany(ctx, model.Company{Name: "Acme"})
	require.NoError(t, err)
	visitor, err := s.CreateVisitor(ctx, model.Visitor{FirstName: "Ana", LastName: "Gomez", Identification: "CC-1", CompanyID: &company.ID})
	require.NoError(t, err)
	employee, err := s.CreateEmployee(ctx, model.Employee{FirstName: "Luis", LastName: "Perez", Email: "luis@example.com"})
	require.NoError(t, err)
	location, err := s.CreateLocation(ctx, model.Location{Name: "Lobby"})
	require.NoError(t, err)
	return fixture{company: company, visitor: visitor, employee: employee, location: location}
}

func (f fixture) visit(entry time.Time) model.Visit {
	loc := f.location.ID
	now := time.Now().UTC().Truncate(time.Millisecond)
	return model.Visit{
		VisitorID:            f.visitor.ID,
		AuthorizedEmployeeID: f.employee.ID,
		LocationID:           &loc,
		VisitPurpose:         "meeting",
		ScheduledEntryTime:   entry,
		ScheduledExitTime:    entry.Add(time.Hour),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestPostgresStore_Users(t *testing.T) {
	s, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, model.User{Username: "alice", PasswordHash: "hash", PasswordSalt: "salt"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = s.CreateUser(ctx, model.User{Username: "Alice", PasswordHash: "x", PasswordSalt: "y"})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "salt", got.PasswordSalt)

	require.NoError(t, s.EnableTwoFactor(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
	assert.ErrorIs(t, s.EnableTwoFactor(ctx, u.ID, "OTHER"), store.ErrConflict)
	assert.ErrorIs(t, s.EnableTwoFactor(ctx, "00000000-0000-0000-0000-000000000000", "X"), store.ErrNotFound)

	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorEnabled)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got.TwoFactorSecret)
}

func TestPostgresStore_Directory(t *testing.T) {
	s, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()
	f := seedDirectory(t, s)

	_, err := s.CreateVisitor(ctx, model.Visitor{FirstName: "X", LastName: "Y", Identification: "CC-1"})
	assert.ErrorIs(t, err, store.ErrConflict)

	missing := int64(404)
	_, err = s.CreateVisitor(ctx, model.Visitor{FirstName: "X", LastName: "Y", Identification: "CC-9", CompanyID: &missing})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateLocation(ctx, model.Location{Name: "  "})
	assert.ErrorIs(t, err, store.ErrInvalid)

	visitors, total, err := s.ListVisitors(ctx, store.DirectoryFilter{Query: "GOM"})
	require.NoError(t, err)
	require.Len(t, visitors, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, f.visitor.ID, visitors[0].ID)

	edit := f.visitor
	edit.LastName = "Gomez Diaz"
	edit.CompanyID = nil
	got, err := s.UpdateVisitor(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "Gomez Diaz", got.LastName)
	assert.Nil(t, got.CompanyID)

	edit.CompanyID = &missing
	_, err = s.UpdateVisitor(ctx, edit)
	assert.ErrorIs(t, err, store.ErrNotFound)

	renamed, err := s.UpdateCompany(ctx, model.Company{ID: f.company.ID, Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", renamed.Name)
	_, err = s.UpdateCompany(ctx, model.Company{ID: 404, Name: "Initech"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	v, err := s.CreateVisit(ctx, f.visit(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.NoError(t, s.DeleteCompany(ctx, f.company.ID))
	require.NoError(t, s.DeleteVisitor(ctx, f.visitor.ID))
	_, err = s.GetVisit(ctx, v.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteVisitor(ctx, f.visitor.ID), store.ErrNotFound)

	_, err = s.GetEmployee(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_VisitConstraints(t *testing.T) {
	s, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()
	f := seedDirectory(t, s)

	entry := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	v, err := s.CreateVisit(ctx, f.visit(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, v.ScheduledEntryTime)

	_, err = s.CreateVisit(ctx, f.visit(entry))
	assert.ErrorIs(t, err, store.ErrConflict)

	bad := f.visit(entry.Add(time.Hour))
	bad.AuthorizedEmployeeID = 999
	_, err = s.CreateVisit(ctx, bad)
	assert.ErrorIs(t, err, store.ErrNotFound)

	found, err := s.FindVisit(ctx, store.VisitKey{VisitorID: f.visitor.ID, EntryTime: entry, LocationID: f.location.ID})
	require.NoError(t, err)
	assert.Equal(t, v.ID, found.ID)
}

func TestPostgresStore_UpdateVisit(t *testing.T) {
	s, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()
	f := seedDirectory(t, s)

	v, err := s.CreateVisit(ctx, f.visit(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.UpdateVisit(ctx, v.ID, func(v *model.Visit) error {
		v.ReportFlag = true
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetVisit(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, got.ReportFlag)

	// Concurrent guarded transitions: exactly one wins.
	already := errors.New("already")
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateVisit(ctx, v.ID, func(v *model.Visit) error {
				if v.HasEntered {
					return already
				}
				now := time.Now().UTC().Truncate(time.Minute)
				v.HasEntered = true
				v.EntryTime = &now
				return nil
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	_, err = s.UpdateVisit(ctx, 999, func(*model.Visit) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteVisit(ctx, v.ID))
	assert.ErrorIs(t, s.DeleteVisit(ctx, v.ID), store.ErrNotFound)
}

func TestPostgresStore_ListVisits(t *testing.T) {
	s, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()
	f := seedDirectory(t, s)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		v, err := s.CreateVisit(ctx, f.visit(base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}
	entered := base.Add(15 * time.Minute)
	_, err := s.UpdateVisit(ctx, ids[1], func(v *model.Visit) error {
		v.HasEntered = true
		v.EntryTime = &entered
		return nil
	})
	require.NoError(t, err)

	rows, total, err := s.ListVisits(ctx, store.VisitQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[2], rows[0].ID)
	assert.Equal(t, "Ana Gomez", rows[0].VisitorFullName)
	assert.Equal(t, "Luis Perez", rows[0].AuthorizedEmployeeFullName)
	assert.Equal(t, "Lobby", rows[0].LocationName)

	rows, _, err = s.ListVisits(ctx, store.VisitQuery{Sort: store.SortByEntryTime, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1], ids[0], ids[2]}, []int64{rows[0].ID, rows[1].ID, rows[2].ID})

	yes := true
	rows, total, err = s.ListVisits(ctx, store.VisitQuery{Filter: store.VisitFilter{HasEntered: &yes, VisitorFullName: "ana"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, model.VisitStateEntered, rows[0].State)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, total, err = s.ListVisits(ctx, store.VisitQuery{Filter: store.VisitFilter{EntryDate: &day}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	rows, total, err = s.ListVisits(ctx, store.VisitQuery{Sort: store.SortByID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 1)
	assert.Equal(t, ids[1], rows[0].ID)

	_, _, err = s.ListVisits(ctx, store.VisitQuery{Sort: "password"})
	assert.ErrorIs(t, err, store.ErrInvalidSort)
}
