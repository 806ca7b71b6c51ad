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

// listSQL builds a paged select over table and the matching count. match
// holds one "?" per use of the search term.
func listSQL(columns, table, match string, f store.DirectoryFilter) (query, count string, args []any) {
	where := ""
	if term := strings.TrimSpace(f.Query); term != "" {
		for i := 0; i < strings.Count(match, "?"); i++ {
			args = append(args, term)
		}
		where = " WHERE " + match
	}
	count = "SELECT COUNT(*) FROM " + table + where + ";"
	query = "SELECT " + columns + " FROM " + table + where + " ORDER BY id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
		if f.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", f.Offset)
		}
	} else if f.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Offset)
	}
	return query + ";", count, args
}

// insert runs an INSERT through the writer and returns the new row id.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, mapErr(err)
}

// exec runs a single-statement write through the writer and reports
// ErrNotFound when it touched no row.
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
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

func (s *Store) CreateCompany(ctx context.Context, c model.Company) (model.Company, error) {
	c, err := store.NormalizeCompany(c)
	if err != nil {
		return model.Company{}, err
	}
	c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	c.ID, err = s.insert(ctx, `INSERT INTO companies(name, created_at_ms) VALUES (?, ?);`, c.Name, toMs(c.CreatedAt))
	if err != nil {
		return model.Company{}, err
	}
	return c, nil
}

func scanCompany(row scanner) (model.Company, error) {
	var c model.Company
	var created int64
	if err := row.Scan(&c.ID, &c.Name, &created); err != nil {
		return model.Company{}, err
	}
	c.CreatedAt = fromMs(created)
	return c, nil
}

func (s *Store) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx, `SELECT id, name, created_at_ms FROM companies WHERE id = ?;`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) ListCompanies(ctx context.Context, f store.DirectoryFilter) ([]model.Company, int, error) {
	query, count, args := listSQL(`id, name, created_at_ms`, "companies", `instr(lower(name), lower(?)) > 0`, f)
	return queryList(ctx, s.db, query, count, args, scanCompany)
}

func (s *Store) UpdateCompany(ctx context.Context, c model.Company) (model.Company, error) {
	c, err := store.NormalizeCompany(c)
	if err != nil {
		return model.Company{}, err
	}
	if err := s.exec(ctx, `UPDATE companies SET name = ? WHERE id = ?;`, c.Name, c.ID); err != nil {
		return model.Company{}, err
	}
	out, err := s.GetCompany(ctx, c.ID)
	if err != nil {
		return model.Company{}, err
	}
	return *out, nil
}

// DeleteCompany relies on ON DELETE SET NULL to detach visitors.
func (s *Store) DeleteCompany(ctx context.Context, id int64) error {
	return s.exec(ctx, `DELETE FROM companies WHERE id = ?;`, id)
}

const visitorColumns = `id, first_name, last_name, identification, company_id, gender, blood_type,
  phone_number, email, address, date_of_birth_ms, created_at_ms`

func scanVisitor(row scanner) (model.Visitor, error) {
	var (
		v       model.Visitor
		company sql.NullInt64
		dob     sql.NullInt64
		created int64
	)
	if err := row.Scan(
		&v.ID,
		&v.FirstName,
		&v.LastName,
		&v.Identification,
		&company,
		&v.Gender,
		&v.BloodType,
		&v.PhoneNumber,
		&v.Email,
		&v.Address,
		&dob,
		&created,
	); err != nil {
		return model.Visitor{}, err
	}
	v.CompanyID = fromNullInt(company)
	v.DateOfBirth = fromNullMs(dob)
	v.CreatedAt = fromMs(created)
	return v, nil
}

func (s *Store) CreateVisitor(ctx context.Context, v model.Visitor) (model.Visitor, error) {
	v, err := store.NormalizeVisitor(v)
	if err != nil {
		return model.Visitor{}, err
	}
	v.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	v.ID, err = s.insert(ctx, `
INSERT INTO visitors(first_name, last_name, identification, company_id, gender, blood_type,
  phone_number, email, address, date_of_birth_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, v.FirstName, v.LastName, v.Identification, toNullInt(v.CompanyID), v.Gender, v.BloodType,
		v.PhoneNumber, v.Email, v.Address, toNullMs(v.DateOfBirth), toMs(v.CreatedAt))
	if err != nil {
		return model.Visitor{}, err
	}
	return v, nil
}

func (s *Store) GetVisitor(ctx context.Context, id int64) (*model.Visitor, error) {
	v, err := scanVisitor(s.db.QueryRowContext(ctx, `SELECT `+visitorColumns+` FROM visitors WHERE id = ?;`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) ListVisitors(ctx context.Context, f store.DirectoryFilter) ([]model.Visitor, int, error) {
	query, count, args := listSQL(visitorColumns, "visitors",
		`(instr(lower(first_name || ' ' || last_name), lower(?)) > 0 OR instr(lower(identification), lower(?)) > 0)`,
		f,
	)
	return queryList(ctx, s.db, query, count, args, scanVisitor)
}

func (s *Store) UpdateVisitor(ctx context.Context, v model.Visitor) (model.Visitor, error) {
	v, err := store.NormalizeVisitor(v)
	if err != nil {
		return model.Visitor{}, err
	}
	err = s.exec(ctx, `
UPDATE visitors
SET first_name = ?, last_name = ?, identification = ?, company_id = ?, gender = ?, blood_type = ?,
  phone_number = ?, email = ?, address = ?, date_of_birth_ms = ?
WHERE id = ?;
`, v.FirstName, v.LastName, v.Identification, toNullInt(v.CompanyID), v.Gender, v.BloodType,
		v.PhoneNumber, v.Email, v.Address, toNullMs(v.DateOfBirth), v.ID)
	if err != nil {
		return model.Visitor{}, err
	}
	out, err := s.GetVisitor(ctx, v.ID)
	if err != nil {
		return model.Visitor{}, err
	}
	return *out, nil
}

// DeleteVisitor relies on ON DELETE CASCADE to remove the visitor's visits.
func (s *Store) DeleteVisitor(ctx context.Context, id int64) error {
	return s.exec(ctx, `DELETE FROM visitors WHERE id = ?;`, id)
}

const employeeColumns = `id, first_name, last_name, position, email, phone_number, created_at_ms`

func scanEmployee(row scanner) (model.Employee, error) {
	var e model.Employee
	var created int64
	if err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Position, &e.Email, &e.PhoneNumber, &created); err != nil {
		return model.Employee{}, err
	}
	e.CreatedAt = fromMs(created)
	return e, nil
}

func (s *Store) CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error) {
	e, err := store.NormalizeEmployee(e)
	if err != nil {
		return model.Employee{}, err
	}
	e.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	e.ID, err = s.insert(ctx, `
INSERT INTO employees(first_name, last_name, position, email, phone_number, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, e.FirstName, e.LastName, e.Position, e.Email, e.PhoneNumber, toMs(e.CreatedAt))
	if err != nil {
		return model.Employee{}, err
	}
	return e, nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*model.Employee, error) {
	e, err := scanEmployee(s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?;`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context, f store.DirectoryFilter) ([]model.Employee, int, error) {
	query, count, args := listSQL(employeeColumns, "employees",
		`(instr(lower(first_name || ' ' || last_name), lower(?)) > 0 OR instr(lower(email), lower(?)) > 0)`,
		f,
	)
	return queryList(ctx, s.db, query, count, args, scanEmployee)
}

func scanLocation(row scanner) (model.Location, error) {
	var l model.Location
	var created int64
	if err := row.Scan(&l.ID, &l.Name, &l.Description, &created); err != nil {
		return model.Location{}, err
	}
	l.CreatedAt = fromMs(created)
	return l, nil
}

func (s *Store) CreateLocation(ctx context.Context, l model.Location) (model.Location, error) {
	l, err := store.NormalizeLocation(l)
	if err != nil {
		return model.Location{}, err
	}
	l.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	l.ID, err = s.insert(ctx, `INSERT INTO locations(name, description, created_at_ms) VALUES (?, ?, ?);`,
		l.Name, l.Description, toMs(l.CreatedAt))
	if err != nil {
		return model.Location{}, err
	}
	return l, nil
}

func (s *Store) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, `SELECT id, name, description, created_at_ms FROM locations WHERE id = ?;`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (s *Store) ListLocations(ctx context.Context, f store.DirectoryFilter) ([]model.Location, int, error) {
	query, count, args := listSQL(`id, name, description, created_at_ms`, "locations", `instr(lower(name), lower(?)) > 0`, f)
	return queryList(ctx, s.db, query, count, args, scanLocation)
}

func queryList[T any](ctx context.Context, db *sql.DB, query, count string, args []any, scan func(scanner) (T, error)) ([]T, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, count, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, mapErr(err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapErr(err)
	}
	return out, total, nil
}
