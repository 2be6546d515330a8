// Package types contains common types used across the application
package types

import "strings"

// PairScore is the canonical trust score for one unordered participant pair.
// A < B under lexical order; Score is one of 0.0, 0.5, 1.0.
type PairScore struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// PersonalScore is the aggregate trust score for one participant, in [0,1].
type PersonalScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ConfirmScore is the externally supplied eligibility score for a participant.
// The service treats the value as opaque apart from the 0.5 panel threshold.
type ConfirmScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Validator is one member of a verification panel.
type Validator struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// NormalizeID canonicalizes a wallet identity. Identities are case-insensitive
// opaque strings; every boundary lower-cases and trims them before use.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
