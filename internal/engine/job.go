package engine

import (
	"sort"
	"time"
)

type Status string

const (
	StatusQueued    Status = "Queued"
	StatusPrinting  Status = "Printing"
	StatusReady     Status = "Ready"
	StatusCollected Status = "Collected"
)

// Next returns the following status in the strictly linear lifecycle.
// ok is false for Collected, the terminal state.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusQueued:
		return StatusPrinting, true
	case StatusPrinting:
		return StatusReady, true
	case StatusReady:
		return StatusCollected, true
	default:
		return "", false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusPrinting, StatusReady, StatusCollected:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "Paid"
	PaymentUnpaid PaymentStatus = "Unpaid"
)

// Priority orders queued jobs. Lower values are served first, matching
// the 1/2/3 values the dashboard's priority dropdown submits.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
	PriorityLow    Priority = 3
)

func (p Priority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityLow:
		return "Low"
	default:
		return "Normal"
	}
}

type Job struct {
	ID             int64         `json:"id"`
	FileName       string        `json:"file_name"`
	Pages          int           `json:"pages"`
	IsWalkIn       bool          `json:"is_walk_in"`
	Token          string        `json:"token"`
	Cost           float64       `json:"cost"`
	IsExpedited    bool          `json:"is_expedited"`
	Priority       Priority      `json:"priority"`
	Status         Status        `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	CustomerName   string        `json:"customer_name,omitempty"`
	PayerReference string        `json:"payer_reference,omitempty"`
	DocumentHandle string        `json:"document_handle,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// jobLess is the queue ordering policy: priority ascending, expedited
// before regular, then submission order via the id. The whole collection
// is kept in this order so listings always agree with current
// priorities.
func jobLess(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.IsExpedited != b.IsExpedited {
		return a.IsExpedited
	}
	return a.ID < b.ID
}

func sortJobs(jobs []*Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobLess(jobs[i], jobs[j])
	})
}
