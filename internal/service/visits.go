package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"go.uber.org/zap"
)

const (
	defaultVisitPageSize = 50
	maxVisitPageSize     = 500
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type VisitOptions struct {
	// RequireFutureEntry rejects scheduled (non-immediate) visits whose
	// entry time is not after now.
	RequireFutureEntry bool
	Now                Clock
}

// VisitManager owns the visit record lifecycle: creation-time validation
// and the entry, exit and report transitions.
type VisitManager struct {
	store store.VisitStore
	opts  VisitOptions
	log   *zap.Logger
}

func NewVisitManager(st store.VisitStore, opts VisitOptions, log *zap.Logger) *VisitManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &VisitManager{store: st, opts: opts, log: log}
}

type CreateVisitRequest struct {
	VisitorID            int64  `json:"visitor_id"`
	AuthorizedEmployeeID int64  `json:"authorized_employee_id"`
	LocationID           int64  `json:"location_id"`
	CarriedObjects       string `json:"carried_objects"`
	VisitPurpose         string `json:"visit_purpose"`
	IsImmediateVisit     bool   `json:"is_immediate_visit"`
	ScheduledEntryTime   string `json:"scheduled_entry_time"`
	ScheduledExitTime    string `json:"scheduled_exit_time"`

	// UserID is the recording user, filled in from the session.
	UserID string `json:"-"`
}

func (m *VisitManager) Create(ctx context.Context, req CreateVisitRequest) (model.Visit, error) {
	entry, err := parseTimestamp(req.ScheduledEntryTime)
	if err != nil {
		return model.Visit{}, newError(KindInvalidFormat, "scheduled_entry_time is not a valid date-time")
	}
	exit, err := parseTimestamp(req.ScheduledExitTime)
	if err != nil {
		return model.Visit{}, newError(KindInvalidFormat, "scheduled_exit_time is not a valid date-time")
	}
	if req.VisitorID <= 0 {
		return model.Visit{}, newError(KindInvalidFormat, "visitor_id is required")
	}
	if req.AuthorizedEmployeeID <= 0 {
		return model.Visit{}, newError(KindInvalidFormat, "authorized_employee_id is required")
	}

	now := m.opts.Now.utc()

	if !req.IsImmediateVisit && m.opts.RequireFutureEntry && !entry.After(now) {
		return model.Visit{}, newError(KindInvalidSchedule, "the scheduled entry time must be in the future")
	}
	if !exit.After(entry) {
		return model.Visit{}, newError(KindInvalidSchedule, "the exit date/time must be later than the entry date/time")
	}

	key := store.VisitKey{VisitorID: req.VisitorID, EntryTime: entry, LocationID: req.LocationID}
	if _, err := m.store.FindVisit(ctx, key); err == nil {
		return model.Visit{}, ErrDuplicateVisit
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.Visit{}, m.storageErr("find visit", err)
	}

	v := model.Visit{
		VisitorID:            req.VisitorID,
		AuthorizedEmployeeID: req.AuthorizedEmployeeID,
		UserID:               req.UserID,
		CarriedObjects:       strings.TrimSpace(req.CarriedObjects),
		VisitPurpose:         strings.TrimSpace(req.VisitPurpose),
		IsImmediateVisit:     req.IsImmediateVisit,
		ScheduledEntryTime:   entry,
		ScheduledExitTime:    exit,
		HasEntered:           req.IsImmediateVisit,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.LocationID > 0 {
		loc := req.LocationID
		v.LocationID = &loc
	}
	if req.IsImmediateVisit {
		entered := entry
		v.EntryTime = &entered
	}

	created, err := m.store.CreateVisit(ctx, v)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		return model.Visit{}, ErrDuplicateVisit
	case errors.Is(err, store.ErrNotFound):
		return model.Visit{}, newError(KindNotFound, "visitor, employee or location not found")
	default:
		return model.Visit{}, m.storageErr("create visit", err)
	}

	m.log.Info("visit created",
		zap.Int64("visit_id", created.ID),
		zap.Int64("visitor_id", created.VisitorID),
		zap.Bool("immediate", created.IsImmediateVisit),
	)
	return created, nil
}

func (m *VisitManager) Get(ctx context.Context, id int64) (model.Visit, error) {
	v, err := m.store.GetVisit(ctx, id)
	if err != nil {
		return model.Visit{}, m.mapStoreErr("get visit", err)
	}
	return *v, nil
}

// MarkEntry records the visitor's arrival at the current minute.
func (m *VisitManager) MarkEntry(ctx context.Context, id int64) (model.Visit, error) {
	now := m.opts.Now.utc()
	v, err := m.store.UpdateVisit(ctx, id, func(v *model.Visit) error {
		if v.HasEntered {
			return ErrAlreadyEntered
		}
		entered := now.Truncate(time.Minute)
		v.HasEntered = true
		v.EntryTime = &entered
		v.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Visit{}, m.mapStoreErr("mark entry", err)
	}
	m.log.Info("visit entered", zap.Int64("visit_id", id))
	return v, nil
}

// MarkExit records the visitor's departure at the current minute.
func (m *VisitManager) MarkExit(ctx context.Context, id int64) (model.Visit, error) {
	now := m.opts.Now.utc()
	v, err := m.store.UpdateVisit(ctx, id, func(v *model.Visit) error {
		if !v.HasEntered {
			return ErrNotYetEntered
		}
		if v.HasExited {
			return ErrAlreadyExited
		}
		exited := now.Truncate(time.Minute)
		v.HasExited = true
		v.ExitTime = &exited
		v.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Visit{}, m.mapStoreErr("mark exit", err)
	}
	m.log.Info("visit exited", zap.Int64("visit_id", id))
	return v, nil
}

// MarkReported flags the record for incident follow-up. A record can be
// reported once.
func (m *VisitManager) MarkReported(ctx context.Context, id int64, description string) (model.Visit, error) {
	now := m.opts.Now.utc()
	v, err := m.store.UpdateVisit(ctx, id, func(v *model.Visit) error {
		if v.ReportFlag {
			return ErrAlreadyReported
		}
		v.ReportFlag = true
		v.ReportDescription = strings.TrimSpace(description)
		v.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Visit{}, m.mapStoreErr("mark reported", err)
	}
	m.log.Info("visit reported", zap.Int64("visit_id", id))
	return v, nil
}

// ToggleReport flips the report flag without a guard. Clearing the flag
// also clears the description.
func (m *VisitManager) ToggleReport(ctx context.Context, id int64) (model.Visit, error) {
	now := m.opts.Now.utc()
	v, err := m.store.UpdateVisit(ctx, id, func(v *model.Visit) error {
		v.ReportFlag = !v.ReportFlag
		if !v.ReportFlag {
			v.ReportDescription = ""
		}
		v.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Visit{}, m.mapStoreErr("toggle report", err)
	}
	m.log.Info("visit report toggled", zap.Int64("visit_id", id), zap.Bool("report_flag", v.ReportFlag))
	return v, nil
}

type ReportStatus struct {
	ReportFlag        bool   `json:"report_flag"`
	ReportDescription string `json:"report_description"`
}

func (m *VisitManager) ReportStatus(ctx context.Context, id int64) (ReportStatus, error) {
	v, err := m.Get(ctx, id)
	if err != nil {
		return ReportStatus{}, err
	}
	return ReportStatus{ReportFlag: v.ReportFlag, ReportDescription: v.ReportDescription}, nil
}

// Delete removes a record outright. It is an administrative action outside
// the lifecycle.
func (m *VisitManager) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return newError(KindInvalidFormat, "invalid visit id")
	}
	if err := m.store.DeleteVisit(ctx, id); err != nil {
		return m.mapStoreErr("delete visit", err)
	}
	m.log.Info("visit deleted", zap.Int64("visit_id", id))
	return nil
}

type VisitListFilter struct {
	VisitorID        int64 `json:"visitor_id"`
	LocationID       int64 `json:"location_id"`
	HasEntered       *bool `json:"has_entered"`
	HasExited        *bool `json:"has_exited"`
	ReportFlag       *bool `json:"report_flag"`
	IsImmediateVisit *bool `json:"is_immediate_visit"`

	CarriedObjects             string `json:"carried_objects"`
	VisitPurpose               string `json:"visit_purpose"`
	VisitorFullName            string `json:"visitor_full_name"`
	AuthorizedEmployeeFullName string `json:"authorized_employee_full_name"`
	LocationName               string `json:"location_name"`

	// EntryTime and ExitTime select a calendar day.
	EntryTime string `json:"entry_time"`
	ExitTime  string `json:"exit_time"`
}

type ListVisitsRequest struct {
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Sort   string          `json:"sort"`
	Order  string          `json:"order"`
	Filter VisitListFilter `json:"filter"`
}

type VisitPage struct {
	Total int              `json:"total"`
	Rows  []model.VisitRow `json:"rows"`
}

func (m *VisitManager) List(ctx context.Context, req ListVisitsRequest) (VisitPage, error) {
	q := store.VisitQuery{
		Offset: req.Offset,
		Limit:  req.Limit,
		Filter: store.VisitFilter{
			VisitorID:                  req.Filter.VisitorID,
			LocationID:                 req.Filter.LocationID,
			HasEntered:                 req.Filter.HasEntered,
			HasExited:                  req.Filter.HasExited,
			ReportFlag:                 req.Filter.ReportFlag,
			IsImmediateVisit:           req.Filter.IsImmediateVisit,
			CarriedObjects:             strings.TrimSpace(req.Filter.CarriedObjects),
			VisitPurpose:               strings.TrimSpace(req.Filter.VisitPurpose),
			VisitorFullName:            strings.TrimSpace(req.Filter.VisitorFullName),
			AuthorizedEmployeeFullName: strings.TrimSpace(req.Filter.AuthorizedEmployeeFullName),
			LocationName:               strings.TrimSpace(req.Filter.LocationName),
		},
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = defaultVisitPageSize
	}
	if q.Limit > maxVisitPageSize {
		q.Limit = maxVisitPageSize
	}

	if strings.TrimSpace(req.Sort) == "" {
		q.Sort = store.SortByID
		q.Desc = true
	} else {
		key, err := store.ParseVisitSort(req.Sort)
		if err != nil {
			return VisitPage{}, newError(KindInvalidFormat, "unknown sort key "+req.Sort)
		}
		q.Sort = key
		q.Desc = strings.EqualFold(strings.TrimSpace(req.Order), "desc")
	}

	var err error
	if q.Filter.EntryDate, err = parseDay(req.Filter.EntryTime); err != nil {
		return VisitPage{}, newError(KindInvalidFormat, "entry_time filter is not a valid date")
	}
	if q.Filter.ExitDate, err = parseDay(req.Filter.ExitTime); err != nil {
		return VisitPage{}, newError(KindInvalidFormat, "exit_time filter is not a valid date")
	}

	rows, total, err := m.store.ListVisits(ctx, q)
	if err != nil {
		return VisitPage{}, m.mapStoreErr("list visits", err)
	}
	if rows == nil {
		rows = []model.VisitRow{}
	}
	return VisitPage{Total: total, Rows: rows}, nil
}

type VisitSummary struct {
	OnPremises int `json:"on_premises"`
	Scheduled  int `json:"scheduled"`
	Reported   int `json:"reported"`
	Total      int `json:"total"`
}

// Summary counts visits by state for the dashboard.
func (m *VisitManager) Summary(ctx context.Context) (VisitSummary, error) {
	yes, no := true, false
	count := func(f store.VisitFilter) (int, error) {
		_, total, err := m.store.ListVisits(ctx, store.VisitQuery{Filter: f, Sort: store.SortByID, Limit: 1})
		if err != nil {
			return 0, m.mapStoreErr("summarize visits", err)
		}
		return total, nil
	}

	var out VisitSummary
	var err error
	if out.OnPremises, err = count(store.VisitFilter{HasEntered: &yes, HasExited: &no}); err != nil {
		return VisitSummary{}, err
	}
	if out.Scheduled, err = count(store.VisitFilter{HasEntered: &no}); err != nil {
		return VisitSummary{}, err
	}
	if out.Reported, err = count(store.VisitFilter{ReportFlag: &yes}); err != nil {
		return VisitSummary{}, err
	}
	if out.Total, err = count(store.VisitFilter{}); err != nil {
		return VisitSummary{}, err
	}
	return out, nil
}

func (m *VisitManager) mapStoreErr(op string, err error) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	default:
		return m.storageErr(op, err)
	}
}

func (m *VisitManager) storageErr(op string, err error) error {
	m.log.Error("visit store failure", zap.String("op", op), zap.Error(err))
	return storageFailure(err)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseDay accepts a bare date or any full timestamp and returns the
// start of that UTC day. An empty string yields nil.
func parseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		if t, err = parseTimestamp(s); err != nil {
			return nil, err
		}
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day, nil
}
