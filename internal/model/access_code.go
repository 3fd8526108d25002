package model

import "time"

// AccessCode is a shared-secret token that unlocks the tutor. Codes are
// 8 uppercase hex characters derived from 4 random bytes.
type AccessCode struct {
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// UsedCode records a code that has been redeemed. Only single-use
// deployments ever produce these.
type UsedCode struct {
	Code   string    `json:"code" db:"code"`
	UsedAt time.Time `json:"usedAt" db:"used_at"`
}

// CodeSnapshot is the read-only view of the credential store shown on the
// admin dashboard.
type CodeSnapshot struct {
	AccessCodes []AccessCode `json:"accessCodes"`
	UsedCodes   []string     `json:"usedCodes"`
}

// EmptySnapshot returns a snapshot with non-nil slices so that it encodes
// as empty JSON arrays instead of null.
func EmptySnapshot() CodeSnapshot {
	return CodeSnapshot{
		AccessCodes: []AccessCode{},
		UsedCodes:   []string{},
	}
}

// Contains reports whether code is in the active set of the snapshot.
func (s CodeSnapshot) Contains(code string) bool {
	for _, c := range s.AccessCodes {
		if c.Code == code {
			return true
		}
	}
	return false
}

// WasUsed reports whether code is in the used set of the snapshot.
func (s CodeSnapshot) WasUsed(code string) bool {
	for _, c := range s.UsedCodes {
		if c == code {
			return true
		}
	}
	return false
}
