// Package model contains domain models passed between layers.
package model

import "time"

// Click records that Source engaged with Target's content. The click log is
// append-only; pair scores are rederived from it in full on demand.
type Click struct {
	ID     string    // unique id for idempotency
	Source string    // who clicked
	Target string    // whose content was clicked
	Link   string    // the clicked link or payload reference
	TS     time.Time // when the click was recorded
}

// Registration associates a wallet identity with a display nickname.
type Registration struct {
	Wallet   string
	Nickname string
}
