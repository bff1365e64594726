package domain

import (
	"time"

	"github.com/google/uuid"
)

// Day normalizes a point in time to the calendar day used by the throttle
// records.
func Day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ClaimRequest is the transient input of the claim workflow, one per HTTP
// call.
type ClaimRequest struct {
	RequestID   string
	Address     string
	Client      string
	Agreed      bool
	SubmittedAt time.Time
}

func NewClaimRequest(address, client string, agreed bool) ClaimRequest {
	return ClaimRequest{
		RequestID:   uuid.NewString(),
		Address:     address,
		Client:      client,
		Agreed:      agreed,
		SubmittedAt: time.Now(),
	}
}

// AddressClaim marks that an address received a disbursement on a given day.
// Unique on (Address, Day).
type AddressClaim struct {
	Address string
	Day     string
}

// ClientAttempt is an audit row appended for every claim attempt from a
// client, regardless of outcome.
type ClientAttempt struct {
	Client string
	Day    string
	At     time.Time
}
