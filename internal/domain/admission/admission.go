// Package admission runs the verification state machine that admits a
// candidate once a quorum of selected validators approves them.
//
// One session per candidate: NoSession -> Open (panel assigned) -> finalized
// and removed. Sessions hold a panel snapshot that never changes, a vote map
// that accepts at most one vote per validator, and are deleted the moment a
// decision is reached. No history is kept.
package admission

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/vouch/internal/domain/types"
	"github.com/okian/vouch/pkg/logger"
	"github.com/okian/vouch/pkg/metrics"
)

// Realtime event names emitted by the coordinator.
const (
	EventVerificationRequested = "verificationRequested"
	EventVerificationCompleted = "verificationCompleted"
	EventVerificationResult    = "verificationResult"
)

// VerificationRequest is delivered to each live validator when a session opens.
type VerificationRequest struct {
	Candidate  string   `json:"candidate"`
	Nickname   string   `json:"nickname"`
	Message    string   `json:"message"`
	Validators []string `json:"validators"`
}

// VerificationOutcome is delivered to the candidate and the panel on finalize.
type VerificationOutcome struct {
	Candidate string `json:"candidate"`
	Approved  bool   `json:"approved"`
}

// PanelSelector picks the validator panel for a new session. The call performs
// I/O (it rereads the confirm score feed), so it sits between the duplicate
// check and session activation; the registry reservation covers that window.
type PanelSelector interface {
	Select(ctx context.Context) ([]types.Validator, error)
}

// Presence delivers a realtime event to a participant's live channel.
// Send reports whether the event was delivered; offline targets are skipped
// silently and the vote simply cannot happen until they reconnect.
type Presence interface {
	Online(id string) bool
	Send(ctx context.Context, id, event string, payload any) bool
}

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom logger for the coordinator.
func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// session is one open verification. The panel is a snapshot taken at
// creation; votes maps verifier id to its single recorded vote.
type session struct {
	candidate string
	nickname  string
	panel     []string
	votes     map[string]bool
}

func (s *session) onPanel(id string) bool {
	for _, v := range s.panel {
		if v == id {
			return true
		}
	}
	return false
}

// Coordinator owns the session table. All check-and-create and check-and-set
// operations happen under one lock so concurrent entry requests and votes for
// the same candidate cannot interleave mid-transition.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*session // nil value marks a reservation in flight

	selector PanelSelector
	presence Presence
	log      logger.Logger
}

// NewCoordinator creates a Coordinator over the given selector and presence
// directory.
func NewCoordinator(selector PanelSelector, presence Presence, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions: make(map[string]*session),
		selector: selector,
		presence: presence,
		log:      logger.Get().Named("admission"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open returns the number of currently open (or reserving) sessions.
func (c *Coordinator) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// RequestEntry opens a verification session for candidate. A second request
// for a candidate with a session already open or opening is an idempotent
// no-op. Panel selection failures abort the request and leave no session
// behind; the candidate is not notified and may simply re-request.
func (c *Coordinator) RequestEntry(ctx context.Context, candidate, nickname string) error {
	candidate = types.NormalizeID(candidate)
	if candidate == "" {
		return nil
	}

	// Reserve the slot before the selector's I/O so a concurrent request for
	// the same candidate cannot open a second session.
	c.mu.Lock()
	if _, exists := c.sessions[candidate]; exists {
		c.mu.Unlock()
		c.log.Debug(ctx, "entry request ignored, session exists", logger.String("candidate", candidate))
		return nil
	}
	c.sessions[candidate] = nil
	c.mu.Unlock()

	validators, err := c.selector.Select(ctx)
	if err != nil {
		c.mu.Lock()
		delete(c.sessions, candidate)
		c.mu.Unlock()
		return fmt.Errorf("select panel for %s: %w", candidate, err)
	}

	panelIDs := make([]string, 0, len(validators))
	for _, v := range validators {
		panelIDs = append(panelIDs, v.ID)
	}

	sess := &session{
		candidate: candidate,
		nickname:  nickname,
		panel:     panelIDs,
		votes:     make(map[string]bool, len(panelIDs)),
	}

	c.mu.Lock()
	c.sessions[candidate] = sess
	open := len(c.sessions)
	c.mu.Unlock()

	metrics.RecordSessionOpened()
	metrics.RecordPanelSize(len(panelIDs))
	metrics.UpdateOpenSessions(open)
	c.log.Info(ctx, "verification session opened",
		logger.String("candidate", candidate),
		logger.String("nickname", nickname),
		logger.Int("panel", len(panelIDs)))

	if len(panelIDs) == 0 {
		// Zero qualified validators: the quorum rule is vacuously satisfied.
		// Likely a misconfigured confirm feed, so make it loud.
		c.log.Warn(ctx, "empty validator panel, finalizing vacuously",
			logger.String("candidate", candidate))
		c.mu.Lock()
		delete(c.sessions, candidate)
		open = len(c.sessions)
		c.mu.Unlock()
		metrics.UpdateOpenSessions(open)
		c.finalize(ctx, sess)
		return nil
	}

	req := VerificationRequest{
		Candidate:  candidate,
		Nickname:   nickname,
		Message:    fmt.Sprintf("%s (%s) requested entry", nickname, candidate),
		Validators: panelIDs,
	}
	for _, v := range panelIDs {
		if !c.presence.Send(ctx, v, EventVerificationRequested, req) {
			c.log.Debug(ctx, "validator offline, vote request skipped",
				logger.String("candidate", candidate),
				logger.String("validator", v))
		}
	}
	return nil
}

// Vote records one vote from verifier on candidate's open session. Votes for
// unknown sessions, from verifiers outside the panel, or repeated votes from
// the same verifier are discarded. The first vote wins; a later vote never
// overwrites it. When the last panel member has voted the session finalizes.
func (c *Coordinator) Vote(ctx context.Context, candidate, verifier string, approve bool) {
	candidate = types.NormalizeID(candidate)
	verifier = types.NormalizeID(verifier)

	c.mu.Lock()
	sess, ok := c.sessions[candidate]
	if !ok || sess == nil || !sess.onPanel(verifier) {
		c.mu.Unlock()
		return
	}
	if _, voted := sess.votes[verifier]; voted {
		c.mu.Unlock()
		metrics.RecordDuplicateVote()
		c.log.Debug(ctx, "duplicate vote discarded",
			logger.String("candidate", candidate),
			logger.String("verifier", verifier))
		return
	}
	sess.votes[verifier] = approve
	complete := len(sess.votes) == len(sess.panel)
	if complete {
		delete(c.sessions, candidate)
	}
	open := len(c.sessions)
	c.mu.Unlock()

	metrics.RecordVote()
	c.log.Info(ctx, "vote recorded",
		logger.String("candidate", candidate),
		logger.String("verifier", verifier),
		logger.Bool("approve", approve))

	if complete {
		metrics.UpdateOpenSessions(open)
		c.finalize(ctx, sess)
	}
}

// finalize applies the two-thirds quorum rule and notifies everyone involved.
// The session has already been removed from the table by the caller.
func (c *Coordinator) finalize(ctx context.Context, sess *session) {
	approvals := 0
	for _, approve := range sess.votes {
		if approve {
			approvals++
		}
	}
	total := len(sess.panel)
	approved := approvals*3 >= total*2

	metrics.RecordSessionFinalized(approved)
	c.log.Info(ctx, "verification finalized",
		logger.String("candidate", sess.candidate),
		logger.Int("approvals", approvals),
		logger.Int("total", total),
		logger.Bool("approved", approved))

	outcome := VerificationOutcome{Candidate: sess.candidate, Approved: approved}
	if !c.presence.Send(ctx, sess.candidate, EventVerificationCompleted, outcome) {
		c.log.Debug(ctx, "candidate offline, completion not delivered",
			logger.String("candidate", sess.candidate))
	}
	for _, v := range sess.panel {
		if !c.presence.Send(ctx, v, EventVerificationResult, outcome) {
			c.log.Debug(ctx, "validator offline, result not delivered",
				logger.String("validator", v))
		}
	}
}
