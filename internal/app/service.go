// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the realtime gateway.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	clickqueue "github.com/okian/vouch/internal/adapters/mq/queue"
	workerpool "github.com/okian/vouch/internal/adapters/mq/worker"
	repository "github.com/okian/vouch/internal/adapters/repository"
	"github.com/okian/vouch/internal/adapters/ws"
	"github.com/okian/vouch/internal/domain/admission"
	"github.com/okian/vouch/internal/domain/dedupe"
	"github.com/okian/vouch/internal/domain/model"
	"github.com/okian/vouch/internal/domain/panel"
	"github.com/okian/vouch/internal/domain/trust"
	"github.com/okian/vouch/internal/domain/types"
	"github.com/okian/vouch/pkg/logger"
	"github.com/okian/vouch/pkg/metrics"
)

// confirmSource adapts the score tables to the panel selector's feed
// interface.
type confirmSource struct {
	tables *repository.Tables
}

func (c *confirmSource) Scores(ctx context.Context) ([]types.ConfirmScore, error) {
	return c.tables.ConfirmScores(ctx)
}

// Service implements the gateway and API dependencies for the admission
// system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	tables      *repository.Tables
	deduper     dedupe.Deduper
	clickQueue  *clickqueue.InMemoryQueue
	workerPool  *workerpool.WorkerPool
	selector    *panel.Selector
	coordinator *admission.Coordinator
	gateway     *ws.Gateway

	// Serializes click recording so score recomputation never races.
	recordMu sync.Mutex

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	storePath     string
	minShareScore float64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of click worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the click queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the click deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStorePath points the service at a SQLite file. Empty keeps the
// in-memory store.
func WithStorePath(path string) Option {
	return func(s *Service) {
		s.storePath = path
	}
}

// WithMinShareScore sets the personal score required to share links and
// view shared content.
func WithMinShareScore(min float64) Option {
	return func(s *Service) {
		if min > 0 {
			s.minShareScore = min
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     10000,
		dedupeSize:    50000,
		minShareScore: 0.5,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting admission service...")

	if s.storePath != "" {
		store, err := repository.OpenSQLite(s.storePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.storePath))
	} else {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.tables = repository.NewTables(s.store)

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.clickQueue = clickqueue.NewInMemoryQueue(
		clickqueue.WithCapacity(s.queueSize),
		clickqueue.WithBufferSize(s.queueSize),
	)

	s.selector = panel.NewSelector(
		&confirmSource{tables: s.tables},
		s.tables,
		panel.WithMinScore(s.minShareScore),
	)
	s.gateway = ws.NewGateway(s, ws.WithLogger(s.logger.Named("ws")))
	s.coordinator = admission.NewCoordinator(
		s.selector,
		s.gateway,
		admission.WithLogger(s.logger.Named("admission")),
	)

	s.workerPool = workerpool.NewWorkerPool(s.workerCount, s.clickQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "admission service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping admission service...")

	if s.clickQueue != nil {
		_ = s.clickQueue.Close()
	}
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "admission service stopped")
}

// Gateway exposes the realtime gateway for route registration.
func (s *Service) Gateway() *ws.Gateway {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gateway
}

// RegisterUser records the wallet's nickname and reports whether the wallet
// was already known.
func (s *Service) RegisterUser(ctx context.Context, wallet, nickname string) (bool, error) {
	wallet = types.NormalizeID(wallet)

	names, err := s.tables.Names(ctx)
	if err != nil {
		return false, fmt.Errorf("load names: %w", err)
	}
	if _, ok := names[wallet]; ok {
		return true, nil
	}

	reg := model.Registration{Wallet: wallet, Nickname: nickname}
	if err := s.tables.SaveName(ctx, reg); err != nil {
		return false, fmt.Errorf("save name: %w", err)
	}
	s.logger.Info(ctx, "registered new wallet",
		logger.String("wallet", wallet),
		logger.String("nickname", nickname),
	)
	return false, nil
}

// RequestEntry opens a verification session for the candidate.
func (s *Service) RequestEntry(ctx context.Context, wallet, nickname string) error {
	return s.coordinator.RequestEntry(ctx, wallet, nickname)
}

// Vote records one validator vote on a pending session.
func (s *Service) Vote(ctx context.Context, candidate, verifier string, approve bool) {
	s.coordinator.Vote(ctx, candidate, verifier, approve)
}

// ShareLink decides whether the wallet's trust score allows broadcasting a
// link, returning the sharer's nickname when allowed.
func (s *Service) ShareLink(ctx context.Context, wallet string) (bool, string, error) {
	wallet = types.NormalizeID(wallet)

	score, err := s.personalScore(ctx, wallet)
	if err != nil {
		return false, "", err
	}
	if score < s.minShareScore {
		return false, "", nil
	}

	nickname := wallet
	names, err := s.tables.Names(ctx)
	if err != nil {
		// A missing nickname should not block the broadcast.
		s.logger.Warn(ctx, "nickname lookup failed, falling back to wallet",
			logger.String("wallet", wallet), logger.Error(err))
	} else if n, ok := names[wallet]; ok && n != "" {
		nickname = n
	}
	return true, nickname, nil
}

// LinkClicked records the click for trust scoring and decides whether the
// clicker's score grants access to the shared content.
func (s *Service) LinkClicked(ctx context.Context, fromUser, toUser, link string) (bool, error) {
	fromUser = types.NormalizeID(fromUser)
	toUser = types.NormalizeID(toUser)

	s.enqueueClick(ctx, model.Click{
		ID:     uuid.NewString(),
		Source: fromUser,
		Target: toUser,
		Link:   link,
		TS:     time.Now().UTC(),
	})

	score, err := s.personalScore(ctx, fromUser)
	if err != nil {
		return false, err
	}
	return score >= s.minShareScore, nil
}

// ApproveUser records the out-of-band approvals as trust clicks and
// registers the candidate's nickname. Clicks are written synchronously so a
// success response means the approvals are durable.
func (s *Service) ApproveUser(ctx context.Context, candidate, nickname, link string, approvers []string) error {
	candidate = types.NormalizeID(candidate)

	if _, err := s.RegisterUser(ctx, candidate, nickname); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, approver := range approvers {
		approver = types.NormalizeID(approver)
		if approver == "" || approver == candidate {
			continue
		}
		click := model.Click{
			ID:     uuid.NewString(),
			Source: approver,
			Target: candidate,
			Link:   link,
			TS:     now,
		}
		if err := s.RecordClick(ctx, click); err != nil {
			return err
		}
	}
	s.logger.Info(ctx, "out-of-band approval recorded",
		logger.String("candidate", candidate),
		logger.Int("approvers", len(approvers)),
	)
	return nil
}

// ConnectedWallets lists the wallets with live realtime channels.
func (s *Service) ConnectedWallets() []string {
	return s.gateway.ConnectedWallets()
}

// RecordClick appends a click and rederives the pair and personal score
// tables from the full click log.
func (s *Service) RecordClick(ctx context.Context, click model.Click) error {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	if err := s.tables.AppendClick(ctx, click); err != nil {
		return fmt.Errorf("append click: %w", err)
	}

	start := time.Now()
	clicks, err := s.tables.Clicks(ctx)
	if err != nil {
		return fmt.Errorf("load clicks: %w", err)
	}
	participants := trust.Participants(clicks)
	pairs := trust.PairScores(clicks, participants)
	personals := trust.PersonalScores(pairs, participants)

	if err := s.tables.WritePairScores(ctx, pairs); err != nil {
		return fmt.Errorf("write pair scores: %w", err)
	}
	if err := s.tables.WritePersonalScores(ctx, personals); err != nil {
		return fmt.Errorf("write personal scores: %w", err)
	}
	metrics.RecordScoreRecomputeDuration(float64(time.Since(start).Milliseconds()))
	return nil
}

// enqueueClick pushes a click for async recording, with idempotency on a
// source/target/link key so repeat clicks do not bloat the log.
func (s *Service) enqueueClick(ctx context.Context, click model.Click) {
	key := click.Source + "|" + click.Target + "|" + click.Link
	if s.deduper.SeenAndRecord(ctx, key) {
		s.logger.Debug(ctx, "duplicate click skipped",
			logger.String("source", click.Source),
			logger.String("target", click.Target),
		)
		return
	}
	if !s.clickQueue.Enqueue(ctx, click) {
		// Allow a retry once there is room again.
		s.deduper.Unrecord(ctx, key)
		s.logger.Warn(ctx, "click queue full, click dropped",
			logger.String("source", click.Source),
			logger.String("target", click.Target),
		)
		return
	}
	metrics.UpdateQueueSize(s.clickQueue.Len(ctx))
}

// personalScore returns the wallet's personal trust score, 0.0 when unknown.
func (s *Service) personalScore(ctx context.Context, wallet string) (float64, error) {
	scores, err := s.tables.PersonalScores(ctx)
	if err != nil {
		return 0, fmt.Errorf("load personal scores: %w", err)
	}
	for _, ps := range scores {
		if ps.ID == wallet {
			return ps.Score, nil
		}
	}
	return 0, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.clickQueue.Len(ctx)
		openSessions := s.coordinator.Open()
		connected := len(s.gateway.ConnectedWallets())

		stats["queueLength"] = queueLen
		stats["openSessions"] = openSessions
		stats["connectedClients"] = connected

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateOpenSessions(openSessions)
		metrics.UpdateConnectedClients(connected)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
