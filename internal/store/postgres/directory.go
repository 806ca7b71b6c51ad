package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"github.com/jackc/pgx/v5"
)

// listQuery builds a paged directory select over table and the matching
// count. match is an expression that receives the search term as $1.
func listQuery(columns, table, match string, f store.DirectoryFilter) (query, count string, args []any) {
	where := ""
	if term := strings.TrimSpace(f.Query); term != "" {
		args = append(args, term)
		where = " where " + match
	}
	count = "select count(*) from " + table + where
	query = "select " + columns + " from " + table + where + " order by id asc"
	if f.Limit > 0 {
		query += fmt.Sprintf(" limit %d", f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" offset %d", f.Offset)
	}
	return query, count, args
}

// queryList runs a listQuery pair and scans each row with scan.
func queryList[T any](ctx context.Context, s *Store, query, count string, args []any, scan func(pgx.Row) (T, error)) ([]T, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, count, args...).Scan(&total); err != nil {
		return nil, 0, mapPgErr(err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgErr(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, mapPgErr(err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPgErr(err)
	}
	return out, total, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return mapPgErr(err)
}

func (s *Store) CreateCompany(ctx context.Context, c model.Company) (model.Company, error) {
	c, err := store.NormalizeCompany(c)
	if err != nil {
		return model.Company{}, err
	}

	var out model.Company
	err = s.pool.QueryRow(ctx, `
		insert into public.companies (name)
		values ($1)
		returning id, name, created_at
	`, c.Name).Scan(&out.ID, &out.Name, &out.CreatedAt)
	if err != nil {
		return model.Company{}, mapPgErr(err)
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}

func (s *Store) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx, `
		select id, name, created_at from public.companies where id = $1
	`, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

const companyColumns = `id, name, created_at`

func scanCompany(row pgx.Row) (model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.CreatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, err
}

func (s *Store) ListCompanies(ctx context.Context, f store.DirectoryFilter) ([]model.Company, int, error) {
	query, count, args := listQuery(companyColumns, "public.companies",
		`position(lower($1::text) in lower(name)) > 0`, f)
	return queryList(ctx, s, query, count, args, scanCompany)
}

func (s *Store) UpdateCompany(ctx context.Context, c model.Company) (model.Company, error) {
	c, err := store.NormalizeCompany(c)
	if err != nil {
		return model.Company{}, err
	}
	out, err := scanCompany(s.pool.QueryRow(ctx, `
		update public.companies set name = $2 where id = $1
		returning `+companyColumns,
		c.ID, c.Name,
	))
	if err != nil {
		return model.Company{}, notFound(err)
	}
	return out, nil
}

// DeleteCompany relies on the visitors.company_id foreign key to detach
// visitors.
func (s *Store) DeleteCompany(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `delete from public.companies where id = $1`, id)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const visitorColumns = `id, first_name, last_name, identification, company_id, gender, blood_type,
	phone_number, email, address, date_of_birth, created_at`

func scanVisitor(row pgx.Row) (model.Visitor, error) {
	var v model.Visitor
	err := row.Scan(
		&v.ID,
		&v.FirstName,
		&v.LastName,
		&v.Identification,
		&v.CompanyID,
		&v.Gender,
		&v.BloodType,
		&v.PhoneNumber,
		&v.Email,
		&v.Address,
		&v.DateOfBirth,
		&v.CreatedAt,
	)
	v.CreatedAt = v.CreatedAt.UTC()
	v.DateOfBirth = utcPtr(v.DateOfBirth)
	return v, err
}

func (s *Store) CreateVisitor(ctx context.Context, v model.Visitor) (model.Visitor, error) {
	v, err := store.NormalizeVisitor(v)
	if err != nil {
		return model.Visitor{}, err
	}

	out, err := scanVisitor(s.pool.QueryRow(ctx, `
		insert into public.visitors (first_name, last_name, identification, company_id, gender, blood_type,
		                             phone_number, email, address, date_of_birth)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning `+visitorColumns,
		v.FirstName, v.LastName, v.Identification, v.CompanyID, v.Gender, v.BloodType,
		v.PhoneNumber, v.Email, v.Address, v.DateOfBirth,
	))
	if err != nil {
		return model.Visitor{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetVisitor(ctx context.Context, id int64) (*model.Visitor, error) {
	v, err := scanVisitor(s.pool.QueryRow(ctx, `
		select `+visitorColumns+` from public.visitors where id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Store) ListVisitors(ctx context.Context, f store.DirectoryFilter) ([]model.Visitor, int, error) {
	query, count, args := listQuery(visitorColumns, "public.visitors",
		`(position(lower($1::text) in lower(first_name || ' ' || last_name)) > 0
		  or position(lower($1::text) in lower(identification)) > 0)`,
		f,
	)
	return queryList(ctx, s, query, count, args, scanVisitor)
}

func (s *Store) UpdateVisitor(ctx context.Context, v model.Visitor) (model.Visitor, error) {
	v, err := store.NormalizeVisitor(v)
	if err != nil {
		return model.Visitor{}, err
	}

	out, err := scanVisitor(s.pool.QueryRow(ctx, `
		update public.visitors
		set first_name = $2, last_name = $3, identification = $4, company_id = $5, gender = $6,
		    blood_type = $7, phone_number = $8, email = $9, address = $10, date_of_birth = $11
		where id = $1
		returning `+visitorColumns,
		v.ID, v.FirstName, v.LastName, v.Identification, v.CompanyID, v.Gender, v.BloodType,
		v.PhoneNumber, v.Email, v.Address, v.DateOfBirth,
	))
	if err != nil {
		return model.Visitor{}, notFound(err)
	}
	return out, nil
}

// DeleteVisitor removes the visitor's visits through the cascading
// foreign key.
func (s *Store) DeleteVisitor(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `delete from public.visitors where id = $1`, id)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const employeeColumns = `id, first_name, last_name, position, email, phone_number, created_at`

func scanEmployee(row pgx.Row) (model.Employee, error) {
	var e model.Employee
	err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Position, &e.Email, &e.PhoneNumber, &e.CreatedAt)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, err
}

func (s *Store) CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error) {
	e, err := store.NormalizeEmployee(e)
	if err != nil {
		return model.Employee{}, err
	}

	out, err := scanEmployee(s.pool.QueryRow(ctx, `
		insert into public.employees (first_name, last_name, position, email, phone_number)
		values ($1, $2, $3, $4, $5)
		returning `+employeeColumns,
		e.FirstName, e.LastName, e.Position, e.Email, e.PhoneNumber,
	))
	if err != nil {
		return model.Employee{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*model.Employee, error) {
	e, err := scanEmployee(s.pool.QueryRow(ctx, `
		select `+employeeColumns+` from public.employees where id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context, f store.DirectoryFilter) ([]model.Employee, int, error) {
	query, count, args := listQuery(employeeColumns, "public.employees",
		`(position(lower($1::text) in lower(first_name || ' ' || last_name)) > 0
		  or position(lower($1::text) in lower(email)) > 0)`,
		f,
	)
	return queryList(ctx, s, query, count, args, scanEmployee)
}

func (s *Store) CreateLocation(ctx context.Context, l model.Location) (model.Location, error) {
	l, err := store.NormalizeLocation(l)
	if err != nil {
		return model.Location{}, err
	}

	var out model.Location
	err = s.pool.QueryRow(ctx, `
		insert into public.locations (name, description)
		values ($1, $2)
		returning id, name, description, created_at
	`, l.Name, l.Description).Scan(&out.ID, &out.Name, &out.Description, &out.CreatedAt)
	if err != nil {
		return model.Location{}, mapPgErr(err)
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}

func (s *Store) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	var l model.Location
	err := s.pool.QueryRow(ctx, `
		select id, name, description, created_at from public.locations where id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

const locationColumns = `id, name, description, created_at`

func scanLocation(row pgx.Row) (model.Location, error) {
	var l model.Location
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt)
	l.CreatedAt = l.CreatedAt.UTC()
	return l, err
}

func (s *Store) ListLocations(ctx context.Context, f store.DirectoryFilter) ([]model.Location, int, error) {
	query, count, args := listQuery(locationColumns, "public.locations",
		`position(lower($1::text) in lower(name)) > 0`, f)
	return queryList(ctx, s, query, count, args, scanLocation)
}
