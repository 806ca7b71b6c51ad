package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"
)

const visitColumns = `v.id, v.visitor_id, v.authorized_employee_id, v.location_id, coalesce(v.user_id, ''),
  v.carried_objects, v.visit_purpose, v.is_immediate_visit, v.scheduled_entry_ms, v.scheduled_exit_ms,
  v.entry_ms, v.exit_ms, v.has_entered, v.has_exited, v.report_flag, v.report_description,
  v.created_at_ms, v.updated_at_ms`

const visitJoins = `
FROM visits v
JOIN visitors vi ON vi.id = v.visitor_id
JOIN employees e ON e.id = v.authorized_employee_id
LEFT JOIN locations l ON l.id = v.location_id`

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
	store.SortByEntryTime:                  "v.entry_ms",
	store.SortByExitTime:                   "v.exit_ms",
	store.SortByScheduledEntryTime:         "v.scheduled_entry_ms",
	store.SortByScheduledExitTime:          "v.scheduled_exit_ms",
	store.SortByCreatedAt:                  "v.created_at_ms",
}

// visitScan holds the raw column values of a visit row.
type visitScan struct {
	location             sql.NullInt64
	entryMs, exitMs      sql.NullInt64
	scheduledEntry       int64
	scheduledExit        int64
	createdMs, updatedMs int64
}

func (vs *visitScan) dest(v *model.Visit) []any {
	return []any{
		&v.ID,
		&v.VisitorID,
		&v.AuthorizedEmployeeID,
		&vs.location,
		&v.UserID,
		&v.CarriedObjects,
		&v.VisitPurpose,
		&v.IsImmediateVisit,
		&vs.scheduledEntry,
		&vs.scheduledExit,
		&vs.entryMs,
		&vs.exitMs,
		&v.HasEntered,
		&v.HasExited,
		&v.ReportFlag,
		&v.ReportDescription,
		&vs.createdMs,
		&vs.updatedMs,
	}
}

func (vs *visitScan) apply(v *model.Visit) {
	v.LocationID = fromNullInt(vs.location)
	v.ScheduledEntryTime = fromMs(vs.scheduledEntry)
	v.ScheduledExitTime = fromMs(vs.scheduledExit)
	v.EntryTime = fromNullMs(vs.entryMs)
	v.ExitTime = fromNullMs(vs.exitMs)
	v.CreatedAt = fromMs(vs.createdMs)
	v.UpdatedAt = fromMs(vs.updatedMs)
}

func scanVisit(row scanner) (model.Visit, error) {
	var v model.Visit
	var vs visitScan
	if err := row.Scan(vs.dest(&v)...); err != nil {
		return model.Visit{}, err
	}
	vs.apply(&v)
	return v, nil
}

func getVisitTx(ctx context.Context, tx *sql.Tx, id int64) (model.Visit, error) {
	return scanVisit(tx.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits v WHERE v.id = ?;`, id))
}

func (s *Store) CreateVisit(ctx context.Context, v model.Visit) (model.Visit, error) {
	var out model.Visit
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO visits(
  visitor_id, authorized_employee_id, location_id, user_id, carried_objects, visit_purpose,
  is_immediate_visit, scheduled_entry_ms, scheduled_exit_ms, entry_ms, exit_ms,
  has_entered, has_exited, report_flag, report_description, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			v.VisitorID, v.AuthorizedEmployeeID, toNullInt(v.LocationID), nullString(v.UserID),
			v.CarriedObjects, v.VisitPurpose, v.IsImmediateVisit,
			toMs(v.ScheduledEntryTime), toMs(v.ScheduledExitTime), toNullMs(v.EntryTime), toNullMs(v.ExitTime),
			v.HasEntered, v.HasExited, v.ReportFlag, v.ReportDescription, toMs(v.CreatedAt), toMs(v.UpdatedAt),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		out, err = getVisitTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Visit{}, mapErr(err)
	}
	return out, nil
}

func (s *Store) GetVisit(ctx context.Context, id int64) (*model.Visit, error) {
	v, err := scanVisit(s.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits v WHERE v.id = ?;`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) FindVisit(ctx context.Context, k store.VisitKey) (*model.Visit, error) {
	ms := toMs(k.EntryTime)
	v, err := scanVisit(s.db.QueryRowContext(ctx, `
SELECT `+visitColumns+`
FROM visits v
WHERE v.visitor_id = ?
  AND coalesce(v.location_id, 0) = ?
  AND (v.scheduled_entry_ms = ? OR v.entry_ms = ?)
ORDER BY v.id ASC
LIMIT 1;
`, k.VisitorID, k.LocationID, ms, ms))
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

// UpdateVisit reads, mutates and writes the row inside one writer
// transaction, so it cannot interleave with any other write.
func (s *Store) UpdateVisit(ctx context.Context, id int64, fn store.VisitUpdateFn) (model.Visit, error) {
	var out model.Visit
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		v, err := getVisitTx(ctx, tx, id)
		if err != nil {
			return mapErr(err)
		}
		if err := fn(&v); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE visits
SET location_id = ?, carried_objects = ?, visit_purpose = ?, entry_ms = ?, exit_ms = ?,
    has_entered = ?, has_exited = ?, report_flag = ?, report_description = ?, updated_at_ms = ?
WHERE id = ?;
`,
			toNullInt(v.LocationID), v.CarriedObjects, v.VisitPurpose, toNullMs(v.EntryTime), toNullMs(v.ExitTime),
			v.HasEntered, v.HasExited, v.ReportFlag, v.ReportDescription, toMs(v.UpdatedAt), id,
		); err != nil {
			return mapErr(err)
		}
		out, err = getVisitTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Visit{}, err
	}
	return out, nil
}

func (s *Store) DeleteVisit(ctx context.Context, id int64) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM visits WHERE id = ?;`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	return mapErr(err)
}

func buildVisitWhere(f store.VisitFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, vals ...any) {
		clauses = append(clauses, clause)
		args = append(args, vals...)
	}
	contains := func(expr, term string) {
		if term != "" {
			add(fmt.Sprintf("instr(lower(%s), lower(?)) > 0", expr), term)
		}
	}
	sameDay := func(column string, day *time.Time) {
		if day == nil {
			return
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		add(fmt.Sprintf("%s >= ? AND %s < ?", column, column), toMs(start), toMs(start.AddDate(0, 0, 1)))
	}

	if f.VisitorID != 0 {
		add("v.visitor_id = ?", f.VisitorID)
	}
	if f.LocationID != 0 {
		add("coalesce(v.location_id, 0) = ?", f.LocationID)
	}
	if f.HasEntered != nil {
		add("v.has_entered = ?", *f.HasEntered)
	}
	if f.HasExited != nil {
		add("v.has_exited = ?", *f.HasExited)
	}
	if f.ReportFlag != nil {
		add("v.report_flag = ?", *f.ReportFlag)
	}
	if f.IsImmediateVisit != nil {
		add("v.is_immediate_visit = ?", *f.IsImmediateVisit)
	}
	contains("v.carried_objects", f.CarriedObjects)
	contains("v.visit_purpose", f.VisitPurpose)
	contains(visitorNameExpr, f.VisitorFullName)
	contains(employeeNameExpr, f.AuthorizedEmployeeFullName)
	contains(locationNameExpr, f.LocationName)
	sameDay("v.entry_ms", f.EntryDate)
	sameDay("v.exit_ms", f.ExitDate)

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
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
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}

	where, args := buildVisitWhere(q.Filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*)`+visitJoins+where+`;`, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	query := `SELECT ` + visitColumns + `, ` + visitorNameExpr + `, ` + employeeNameExpr + `, ` + locationNameExpr +
		visitJoins + where +
		fmt.Sprintf(" ORDER BY %s %s NULLS LAST, v.id ASC", column, dir)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	} else if q.Offset > 0 {
		query += " LIMIT -1"
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := []model.VisitRow{}
	for rows.Next() {
		var r model.VisitRow
		var vs visitScan
		dest := append(vs.dest(&r.Visit), &r.VisitorFullName, &r.AuthorizedEmployeeFullName, &r.LocationName)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, mapErr(err)
		}
		vs.apply(&r.Visit)
		r.State = r.Visit.State()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapErr(err)
	}
	return out, total, nil
}
