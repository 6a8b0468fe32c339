package models

import "time"

// PendingSubscription is an address that requested notifications but has not
// confirmed ownership yet. Entries live in a document keyed by the normalized
// email address; the code is a 6-digit zero-padded numeric string.
type PendingSubscription struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UnsubscribeToken is a single-use credential that removes one address from
// the verified subscriber set. Entries live in a document keyed by the opaque
// token string. Created and Expires are epoch seconds, matching the on-disk
// format the system has always used.
type UnsubscribeToken struct {
	Email   string `json:"email"`
	Created int64  `json:"created"`
	Expires int64  `json:"expires"`
}
