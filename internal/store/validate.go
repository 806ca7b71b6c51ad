package store

import (
	"strings"

	"github.com/YiberMelo/ChronosSuite/internal/model"
)

// The Normalize helpers trim text fields and enforce required ones. Every
// backend runs them before writing so the stores agree on what is valid.

func NormalizeUser(u model.User) (model.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return u, ValidationError("username_required")
	}
	return u, nil
}

func NormalizeCompany(c model.Company) (model.Company, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return c, ValidationError("name_required")
	}
	return c, nil
}

func NormalizeVisitor(v model.Visitor) (model.Visitor, error) {
	v.FirstName = strings.TrimSpace(v.FirstName)
	v.LastName = strings.TrimSpace(v.LastName)
	v.Identification = strings.TrimSpace(v.Identification)
	v.Gender = strings.TrimSpace(v.Gender)
	v.BloodType = strings.TrimSpace(v.BloodType)
	v.PhoneNumber = strings.TrimSpace(v.PhoneNumber)
	v.Email = strings.TrimSpace(v.Email)
	v.Address = strings.TrimSpace(v.Address)
	if v.FirstName == "" || v.LastName == "" {
		return v, ValidationError("name_required")
	}
	if v.Identification == "" {
		return v, ValidationError("identification_required")
	}
	return v, nil
}

func NormalizeEmployee(e model.Employee) (model.Employee, error) {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.Position = strings.TrimSpace(e.Position)
	e.Email = strings.TrimSpace(e.Email)
	e.PhoneNumber = strings.TrimSpace(e.PhoneNumber)
	if e.FirstName == "" || e.LastName == "" {
		return e, ValidationError("name_required")
	}
	if e.Email == "" {
		return e, ValidationError("email_required")
	}
	return e, nil
}

func NormalizeLocation(l model.Location) (model.Location, error) {
	l.Name = strings.TrimSpace(l.Name)
	l.Description = strings.TrimSpace(l.Description)
	if l.Name == "" {
		return l, ValidationError("name_required")
	}
	return l, nil
}
