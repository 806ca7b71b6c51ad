package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"github.com/jackc/pgx/v5"
)

const visitColumns = `v.id, v.visitor_id, v.authorized_employee_id, v.location_id, coalesce(v.user_id::text, ''),
	v.carried_objects, v.visit_purpose, v.is_immediate_visit, v.scheduled_entry_time, v.scheduled_exit_time,
	v.entry_time, v.exit_time, v.has_entered, v.has_exited, v.report_flag, v.report_description,
	v.created_at, v.updated_at`

const visitJoins = `
	from public.visits v
	join public.visitors vi on vi.id = v.visitor_id
	join public.employees e on e.id = v.authorized_employee_id
	left join public.locations l on l.id = v.location_id`

const (
	visitorNameExpr  = `(vi.first_name || ' ' || vi.last_name)`
	employeeNameExpr = `(e.first_name || ' ' || e.last_name)`
	locationNameExpr = `coalesce(l.name, '')`
)

var visitSortColumns = map[store.VisitSortKey]string{
	store.SortByID:                         "v.id",
	store.SortByVisitorFullName:            "lower" + visitorNameExpr,
	store.SortByAuthorizedEmployeeFullName: "lower" + employeeNameExpr,
	store.SortByLocationName:               "lower(" + locationNameExpr + ")",
	store.SortByCarriedObjects:             "lower(v.carried_objects)",
	store.SortByVisitPurpose:               "lower(v.visit_purpose)",
	store.SortByReportDescription:          "lower(v.report_description)",
	store.SortByEntryTime:                  "v.entry_time",
	store.SortByExitTime:                   "v.exit_time",
	store.SortByScheduledEntryTime:         "v.scheduled_entry_time",
	store.SortByScheduledExitTime:          "v.scheduled_exit_time",
	store.SortByCreatedAt:                  "v.created_at",
}

func visitDest(v *model.Visit) []any {
	return []any{
		&v.ID,
		&v.VisitorID,
		&v.AuthorizedEmployeeID,
		&v.LocationID,
		&v.UserID,
		&v.CarriedObjects,
		&v.VisitPurpose,
		&v.IsImmediateVisit,
		&v.ScheduledEntryTime,
		&v.ScheduledExitTime,
		&v.EntryTime,
		&v.ExitTime,
		&v.HasEntered,
		&v.HasExited,
		&v.ReportFlag,
		&v.ReportDescription,
		&v.CreatedAt,
		&v.UpdatedAt,
	}
}

func normalizeVisit(v *model.Visit) {
	v.ScheduledEntryTime = v.ScheduledEntryTime.UTC()
	v.ScheduledExitTime = v.ScheduledExitTime.UTC()
	v.EntryTime = utcPtr(v.EntryTime)
	v.ExitTime = utcPtr(v.ExitTime)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
}

func scanVisit(row pgx.Row) (model.Visit, error) {
	var v model.Visit
	if err := row.Scan(visitDest(&v)...); err != nil {
		return model.Visit{}, err
	}
	normalizeVisit(&v)
	return v, nil
}

func (s *Store) CreateVisit(ctx context.Context, v model.Visit) (model.Visit, error) {
	out, err := scanVisit(s.pool.QueryRow(ctx, `
		insert into public.visits as v (
			visitor_id, authorized_employee_id, location_id, user_id, carried_objects, visit_purpose,
			is_immediate_visit, scheduled_entry_time, scheduled_exit_time, entry_time, exit_time,
			has_entered, has_exited, report_flag, report_description, created_at, updated_at
		)
		values ($1, $2, $3, nullif($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		returning `+visitColumns,
		v.VisitorID, v.AuthorizedEmployeeID, v.LocationID, v.UserID, v.CarriedObjects, v.VisitPurpose,
		v.IsImmediateVisit, v.ScheduledEntryTime, v.ScheduledExitTime, v.EntryTime, v.ExitTime,
		v.HasEntered, v.HasExited, v.ReportFlag, v.ReportDescription, v.CreatedAt, v.UpdatedAt,
	))
	if err != nil {
		return model.Visit{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetVisit(ctx context.Context, id int64) (*model.Visit, error) {
	v, err := scanVisit(s.pool.QueryRow(ctx, `
		select `+visitColumns+`
		from public.visits v
		where v.id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Store) FindVisit(ctx context.Context, k store.VisitKey) (*model.Visit, error) {
	v, err := scanVisit(s.pool.QueryRow(ctx, `
		select `+visitColumns+`
		from public.visits v
		where v.visitor_id = $1
		  and coalesce(v.location_id, 0) = $3
		  and (v.scheduled_entry_time = $2 or v.entry_time = $2)
		order by v.id asc
		limit 1
	`, k.VisitorID, k.EntryTime, k.LocationID))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// UpdateVisit locks the row with select ... for update so concurrent
// transitions on the same visit serialize.
func (s *Store) UpdateVisit(ctx context.Context, id int64, fn store.VisitUpdateFn) (model.Visit, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Visit{}, mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	v, err := scanVisit(tx.QueryRow(ctx, `
		select `+visitColumns+`
		from public.visits v
		where v.id = $1
		for update
	`, id))
	if err != nil {
		return model.Visit{}, notFound(err)
	}

	if err := fn(&v); err != nil {
		return model.Visit{}, err
	}

	out, err := scanVisit(tx.QueryRow(ctx, `
		update public.visits as v
		set location_id = $2,
		    carried_objects = $3,
		    visit_purpose = $4,
		    entry_time = $5,
		    exit_time = $6,
		    has_entered = $7,
		    has_exited = $8,
		    report_flag = $9,
		    report_description = $10,
		    updated_at = $11
		where v.id = $1
		returning `+visitColumns,
		id, v.LocationID, v.CarriedObjects, v.VisitPurpose, v.EntryTime, v.ExitTime,
		v.HasEntered, v.HasExited, v.ReportFlag, v.ReportDescription, v.UpdatedAt,
	))
	if err != nil {
		return model.Visit{}, mapPgErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Visit{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) DeleteVisit(ctx context.Context, id int64) error {
	cmdTag, err := s.pool.Exec(ctx, `delete from public.visits where id = $1`, id)
	if err != nil {
		return mapPgErr(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// visitWhere collects predicates with positional arguments. Each "?" in a
// clause is replaced by the placeholder of the argument it was added with.
type visitWhere struct {
	clauses []string
	args    []any
}

func (w *visitWhere) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *visitWhere) contains(expr, term string) {
	if term == "" {
		return
	}
	w.add(fmt.Sprintf("position(lower(?::text) in lower(%s)) > 0", expr), term)
}

func (w *visitWhere) sameDay(column string, day *time.Time) {
	if day == nil {
		return
	}
	w.add(fmt.Sprintf("%s >= ?::timestamptz and %s < ?::timestamptz + interval '1 day'", column, column), day.UTC())
}

func (w *visitWhere) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " where " + strings.Join(w.clauses, " and ")
}

func buildVisitWhere(f store.VisitFilter) *visitWhere {
	w := &visitWhere{}
	if f.VisitorID != 0 {
		w.add("v.visitor_id = ?", f.VisitorID)
	}
	if f.LocationID != 0 {
		w.add("coalesce(v.location_id, 0) = ?", f.LocationID)
	}
	if f.HasEntered != nil {
		w.add("v.has_entered = ?", *f.HasEntered)
	}
	if f.HasExited != nil {
		w.add("v.has_exited = ?", *f.HasExited)
	}
	if f.ReportFlag != nil {
		w.add("v.report_flag = ?", *f.ReportFlag)
	}
	if f.IsImmediateVisit != nil {
		w.add("v.is_immediate_visit = ?", *f.IsImmediateVisit)
	}
	w.contains("v.carried_objects", f.CarriedObjects)
	w.contains("v.visit_purpose", f.VisitPurpose)
	w.contains(visitorNameExpr, f.VisitorFullName)
	w.contains(employeeNameExpr, f.AuthorizedEmployeeFullName)
	w.contains(locationNameExpr, f.LocationName)
	w.sameDay("v.entry_time", f.EntryDate)
	w.sameDay("v.exit_time", f.ExitDate)
	return w
}

func (s *Store) ListVisits(ctx context.Context, q store.VisitQuery) ([]model.VisitRow, int, error) {
	sortKey := q.Sort
	if sortKey == "" {
		sortKey = store.SortByID
		q.Desc = true
	}
	column, ok := visitSortColumns[sortKey]
	if !ok {
		return nil, 0, store.ErrInvalidSort
	}
	dir := "asc"
	if q.Desc {
		dir = "desc"
	}

	where := buildVisitWhere(q.Filter)

	var total int
	if err := s.pool.QueryRow(ctx, `select count(*)`+visitJoins+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, mapPgErr(err)
	}

	query := `select ` + visitColumns + `, ` + visitorNameExpr + `, ` + employeeNameExpr + `, ` + locationNameExpr +
		visitJoins + where.String() +
		fmt.Sprintf(" order by %s %s nulls last, v.id asc", column, dir)
	if q.Limit > 0 {
		query += fmt.Sprintf(" limit %d", q.Limit)
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" offset %d", q.Offset)
	}

	rows, err := s.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.VisitRow{}
	for rows.Next() {
		var r model.VisitRow
		dest := append(visitDest(&r.Visit), &r.VisitorFullName, &r.AuthorizedEmployeeFullName, &r.LocationName)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, mapPgErr(err)
		}
		normalizeVisit(&r.Visit)
		r.State = r.Visit.State()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPgErr(err)
	}
	return out, total, nil
}
