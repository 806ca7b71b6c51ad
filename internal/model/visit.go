package model

import "time"

type VisitState string

const (
	VisitStateScheduled VisitState = "scheduled"
	VisitStateEntered   VisitState = "entered"
	VisitStateExited    VisitState = "exited"
)

// Visit is a single visitor's pass through a location, from scheduling
// to exit. EntryTime is set iff HasEntered; HasExited implies HasEntered.
type Visit struct {
	ID                   int64      `json:"id"`
	VisitorID            int64      `json:"visitor_id"`
	AuthorizedEmployeeID int64      `json:"authorized_employee_id"`
	LocationID           *int64     `json:"location_id,omitempty"`
	UserID               string     `json:"user_id,omitempty"` // recording user
	CarriedObjects       string     `json:"carried_objects"`
	VisitPurpose         string     `json:"visit_purpose"`
	IsImmediateVisit     bool       `json:"is_immediate_visit"`
	ScheduledEntryTime   time.Time  `json:"scheduled_entry_time"`
	ScheduledExitTime    time.Time  `json:"scheduled_exit_time"`
	EntryTime            *time.Time `json:"entry_time,omitempty"`
	ExitTime             *time.Time `json:"exit_time,omitempty"`
	HasEntered           bool       `json:"has_entered"`
	HasExited            bool       `json:"has_exited"`
	ReportFlag           bool       `json:"report_flag"`
	ReportDescription    string     `json:"report_description,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (v Visit) State() VisitState {
	switch {
	case v.HasExited:
		return VisitStateExited
	case v.HasEntered:
		return VisitStateEntered
	default:
		return VisitStateScheduled
	}
}

// LocationKey returns the location id or 0 when the visit has no location.
func (v Visit) LocationKey() int64 {
	if v.LocationID == nil {
		return 0
	}
	return *v.LocationID
}

// VisitRow is a Visit joined with the display names of its references.
type VisitRow struct {
	Visit
	State                      VisitState `json:"state"`
	VisitorFullName            string     `json:"visitor_full_name"`
	AuthorizedEmployeeFullName string     `json:"authorized_employee_full_name"`
	LocationName               string     `json:"location_name"`
}
