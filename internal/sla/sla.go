// Package sla maps ticket priority to work order deadlines.
package sla

import (
	"fmt"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// Policy holds the response window for each priority. Windows are strictly
// ordered: High < Medium < Low.
type Policy struct {
	High   time.Duration
	Medium time.Duration
	Low    time.Duration
}

// DefaultPolicy is used when nothing is configured.
var DefaultPolicy = Policy{
	High:   4 * time.Hour,
	Medium: 24 * time.Hour,
	Low:    72 * time.Hour,
}

// NewPolicy validates the windows and returns a policy.
func NewPolicy(high, medium, low time.Duration) (Policy, error) {
	p := Policy{High: high, Medium: medium, Low: low}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that every window is positive and correctly ordered.
func (p Policy) Validate() error {
	if p.High <= 0 || p.Medium <= 0 || p.Low <= 0 {
		return fmt.Errorf("sla windows must be positive: high=%s medium=%s low=%s", p.High, p.Medium, p.Low)
	}
	if !(p.High < p.Medium && p.Medium < p.Low) {
		return fmt.Errorf("sla windows must satisfy high < medium < low: high=%s medium=%s low=%s", p.High, p.Medium, p.Low)
	}
	return nil
}

// Window returns the response window for priority. Unknown priorities get the
// longest window.
func (p Policy) Window(priority domain.TicketPriority) time.Duration {
	switch priority {
	case domain.TicketPriorityHigh:
		return p.High
	case domain.TicketPriorityMedium:
		return p.Medium
	default:
		return p.Low
	}
}

// Deadline returns now plus the window for priority.
func (p Policy) Deadline(priority domain.TicketPriority, now time.Time) time.Time {
	return now.Add(p.Window(priority))
}
