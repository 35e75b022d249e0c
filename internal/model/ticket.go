package model

import (
	"time"
)

type Category string

const (
	CategoryAcademic       Category = "academic"
	CategoryInfrastructure Category = "infrastructure"
	CategoryStaff          Category = "staff"
	CategoryFacilities     Category = "facilities"
	CategoryOther          Category = "other"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for display: critical sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

func (s Severity) Valid() bool {
	return s.Rank() < 3
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

type Ticket struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Severity    Severity   `json:"severity"`
	Status      Status     `json:"status"`
	Visibility  Visibility `json:"visibility"`
	UpvoteCount int        `json:"upvote_count"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ImageURL    *string    `json:"image_url,omitempty"`
}

type CreateTicketRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Severity    Severity   `json:"severity"`
	Visibility  Visibility `json:"visibility"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,status"`
}

// TicketStats summarises the admin triage snapshot.
type TicketStats struct {
	Open               int `json:"open"`
	InProgress         int `json:"in_progress"`
	Resolved           int `json:"resolved"`
	CriticalUnresolved int `json:"critical_unresolved"`
}
