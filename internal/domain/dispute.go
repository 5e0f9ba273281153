package domain

import "time"

// Dispute is a challenge against a proposed resolution. At most one active
// dispute exists per market at a time.
type Dispute struct {
	ID       string
	MarketID string
	Disputor string
	Bond     int64
	Reason   string
	Active   bool
	Upheld   *bool // set when the dispute is resolved
	OpenedAt time.Time
	ClosedAt *time.Time
}
