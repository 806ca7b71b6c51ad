package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
)

var (
	ErrNotFound    = errors.New("not_found")
	ErrConflict    = errors.New("conflict")
	ErrInvalidSort = errors.New("invalid_sort")
	ErrInvalid     = errors.New("invalid")
)

// ValidationError names the field a record was rejected for. It matches
// ErrInvalid under errors.Is.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

func (e ValidationError) Is(target error) bool { return target == ErrInvalid }

// VisitSortKey is one of the accepted sort columns for visit listings.
type VisitSortKey string

const (
	SortByID                         VisitSortKey = "id"
	SortByVisitorFullName            VisitSortKey = "visitorfullname"
	SortByAuthorizedEmployeeFullName VisitSortKey = "authorizedemployeefullname"
	SortByLocationName               VisitSortKey = "locationname"
	SortByCarriedObjects             VisitSortKey = "carriedobjects"
	SortByVisitPurpose               VisitSortKey = "visitpurpose"
	SortByReportDescription          VisitSortKey = "reportdescription"
	SortByEntryTime                  VisitSortKey = "entrytime"
	SortByExitTime                   VisitSortKey = "exittime"
	SortByScheduledEntryTime         VisitSortKey = "scheduledentrytime"
	SortByScheduledExitTime          VisitSortKey = "scheduledexittime"
	SortByCreatedAt                  VisitSortKey = "createdat"
)

var visitSortKeys = map[string]VisitSortKey{
	"id":                         SortByID,
	"visitorfullname":            SortByVisitorFullName,
	"authorizedemployeefullname": SortByAuthorizedEmployeeFullName,
	"locationname":               SortByLocationName,
	"carriedobjects":             SortByCarriedObjects,
	"visitpurpose":               SortByVisitPurpose,
	"reportdescription":          SortByReportDescription,
	"entrytime":                  SortByEntryTime,
	"exittime":                   SortByExitTime,
	"scheduledentrytime":         SortByScheduledEntryTime,
	"scheduledexittime":          SortByScheduledExitTime,
	"createdat":                  SortByCreatedAt,
}

// ParseVisitSort maps a client sort name to a VisitSortKey. Names are
// matched case-insensitively and may use snake_case. An empty name yields
// SortByID.
func ParseVisitSort(name string) (VisitSortKey, error) {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
	if n == "" {
		return SortByID, nil
	}
	k, ok := visitSortKeys[n]
	if !ok {
		return "", ErrInvalidSort
	}
	return k, nil
}

type VisitFilter struct {
	VisitorID        int64
	LocationID       int64
	HasEntered       *bool
	HasExited        *bool
	ReportFlag       *bool
	IsImmediateVisit *bool

	CarriedObjects             string
	VisitPurpose               string
	VisitorFullName            string
	AuthorizedEmployeeFullName string
	LocationName               string

	// EntryDate and ExitDate match on the UTC calendar day.
	EntryDate *time.Time
	ExitDate  *time.Time
}

type VisitQuery struct {
	Filter VisitFilter
	Sort   VisitSortKey
	Desc   bool
	Offset int
	Limit  int
}

// VisitKey identifies a visit for duplicate detection.
type VisitKey struct {
	VisitorID  int64
	EntryTime  time.Time
	LocationID int64
}

type DirectoryFilter struct {
	Query  string
	Limit  int
	Offset int
}

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// EnableTwoFactor stores secret and sets the enabled flag. It returns
	// ErrConflict when two-factor is already enabled for the user.
	EnableTwoFactor(ctx context.Context, userID, secret string) error
}

// DirectoryStore keeps the reference records visits point at. List
// methods return one page and the number of matches before paging.
type DirectoryStore interface {
	CreateCompany(ctx context.Context, c model.Company) (model.Company, error)
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	ListCompanies(ctx context.Context, f DirectoryFilter) ([]model.Company, int, error)
	// UpdateCompany renames c.ID. It returns ErrConflict when the name is
	// taken by another company.
	UpdateCompany(ctx context.Context, c model.Company) (model.Company, error)
	// DeleteCompany detaches the company's visitors before removing it.
	DeleteCompany(ctx context.Context, id int64) error

	CreateVisitor(ctx context.Context, v model.Visitor) (model.Visitor, error)
	GetVisitor(ctx context.Context, id int64) (*model.Visitor, error)
	ListVisitors(ctx context.Context, f DirectoryFilter) ([]model.Visitor, int, error)
	// UpdateVisitor replaces the editable fields of v.ID. CreatedAt is kept.
	UpdateVisitor(ctx context.Context, v model.Visitor) (model.Visitor, error)
	// DeleteVisitor removes the visitor together with their visits.
	DeleteVisitor(ctx context.Context, id int64) error

	CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error)
	GetEmployee(ctx context.Context, id int64) (*model.Employee, error)
	ListEmployees(ctx context.Context, f DirectoryFilter) ([]model.Employee, int, error)

	CreateLocation(ctx context.Context, l model.Location) (model.Location, error)
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
	ListLocations(ctx context.Context, f DirectoryFilter) ([]model.Location, int, error)
}

// VisitUpdateFn mutates the current record in place. Returning an error
// aborts the update and nothing is written.
type VisitUpdateFn func(v *model.Visit) error

type VisitStore interface {
	// CreateVisit returns ErrConflict when a visit with the same visitor,
	// scheduled entry time and location exists, and ErrNotFound when a
	// referenced visitor, employee or location does not.
	CreateVisit(ctx context.Context, v model.Visit) (model.Visit, error)
	GetVisit(ctx context.Context, id int64) (*model.Visit, error)
	// FindVisit returns the first visit for the visitor and location whose
	// scheduled or actual entry time equals k.EntryTime.
	FindVisit(ctx context.Context, k VisitKey) (*model.Visit, error)
	// UpdateVisit runs fn against the current record while holding it
	// exclusively, then persists the result.
	UpdateVisit(ctx context.Context, id int64, fn VisitUpdateFn) (model.Visit, error)
	DeleteVisit(ctx context.Context, id int64) error
	ListVisits(ctx context.Context, q VisitQuery) ([]model.VisitRow, int, error)
}

type Store interface {
	UserStore
	DirectoryStore
	VisitStore
}
