package model

import "time"

type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Visitor struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Identification string     `json:"identification"`
	CompanyID      *int64     `json:"company_id,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	BloodType      string     `json:"blood_type,omitempty"`
	PhoneNumber    string     `json:"phone_number,omitempty"`
	Email          string     `json:"email,omitempty"`
	Address        string     `json:"address,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (v Visitor) FullName() string { return fullName(v.FirstName, v.LastName) }

type Employee struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Position    string    `json:"position,omitempty"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e Employee) FullName() string { return fullName(e.FirstName, e.LastName) }

type Location struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func fullName(first, last string) string {
	return first + " " + last
}
