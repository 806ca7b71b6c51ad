package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"

	"github.com/stretchr/testify/require"
)

// newTestStore returns a Store over a private in-memory database with the
// production migrations applied. It is closed when the test finishes.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	// Shared cache keeps the in-memory database alive across pool reconnects.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared&%s", name, pragmas)

	db, err := openDSN(context.Background(), dsn)
	require.NoError(t, err)

	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
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
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
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
