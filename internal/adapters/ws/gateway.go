// Package ws is the realtime gateway: it upgrades websocket connections,
// decodes event envelopes, and doubles as the presence directory mapping a
// wallet identity to its live channel.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/vouch/internal/domain/types"
	"github.com/okian/vouch/pkg/logger"
	"github.com/okian/vouch/pkg/metrics"
)

// Inbound event names.
const (
	eventRegisterUser = "registerUser"
	eventRequestEntry = "requestEntry"
	eventVote         = "vote"
	eventNewLink      = "newLink"
	eventLinkClicked  = "linkClicked"
)

// Outbound event names.
const (
	EventExistingUserConfirmed = "existingUserConfirmed"
	EventNewLink               = "newLink"
	EventLinkAccessGranted     = "linkAccessGranted"
	EventLinkAccessDenied      = "linkAccessDenied"
)

// Connection tuning.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 32
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Dependencies is what the gateway needs from the application service.
type Dependencies interface {
	// RegisterUser records the wallet/nickname pair and reports whether the
	// wallet was already known.
	RegisterUser(ctx context.Context, wallet, nickname string) (bool, error)

	// RequestEntry opens a verification session for the candidate.
	RequestEntry(ctx context.Context, wallet, nickname string) error

	// Vote records one validator vote.
	Vote(ctx context.Context, candidate, verifier string, approve bool)

	// ShareLink decides whether wallet may broadcast a link, returning the
	// sharer's nickname when allowed.
	ShareLink(ctx context.Context, wallet string) (bool, string, error)

	// LinkClicked records the click and decides whether the clicker's trust
	// score grants access to the target's content.
	LinkClicked(ctx context.Context, fromUser, toUser, link string) (bool, error)
}

// Gateway owns the websocket clients and implements the presence directory.
type Gateway struct {
	deps Dependencies
	log  logger.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client // wallet -> live client
}

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithLogger sets a custom logger for the gateway.
func WithLogger(log logger.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGateway creates the realtime gateway.
func NewGateway(deps Dependencies, opts ...Option) *Gateway {
	g := &Gateway{
		deps:    deps,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			// Browser clients connect from the app origin; identity is not
			// authenticated anyway, so cross-origin is not a boundary here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get().Named("ws")
	}
	return g
}

// HandleWS upgrades an HTTP request into a websocket session.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	go g.readPump(c)
}

// Online reports whether the wallet has a live channel.
func (g *Gateway) Online(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.clients[types.NormalizeID(id)]
	return ok
}

// Send delivers one event to the wallet's live channel. It reports false if
// the wallet is offline or its channel is backed up; the event is dropped.
func (g *Gateway) Send(ctx context.Context, id, event string, payload any) bool {
	g.mu.RLock()
	c, ok := g.clients[types.NormalizeID(id)]
	g.mu.RUnlock()
	if !ok {
		metrics.RecordDeliverySkipped()
		return false
	}
	if !c.push(event, payload) {
		metrics.RecordDeliverySkipped()
		g.log.Warn(ctx, "client channel full, event dropped",
			logger.String("wallet", id),
			logger.String("event", event))
		return false
	}
	metrics.RecordEventDelivered()
	return true
}

// Broadcast delivers one event to every connected client.
func (g *Gateway) Broadcast(ctx context.Context, event string, payload any) {
	g.mu.RLock()
	targets := make([]*client, 0, len(g.clients))
	for _, c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	for _, c := range targets {
		if c.push(event, payload) {
			metrics.RecordEventDelivered()
		} else {
			metrics.RecordDeliverySkipped()
		}
	}
}

// ConnectedWallets lists the wallets with live channels, for GET /users.
func (g *Gateway) ConnectedWallets() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.clients))
	for wallet := range g.clients {
		out = append(out, wallet)
	}
	return out
}

// track binds a wallet to a client, replacing any previous binding.
func (g *Gateway) track(wallet string, c *client) {
	wallet = types.NormalizeID(wallet)
	if wallet == "" {
		return
	}
	g.mu.Lock()
	g.clients[wallet] = c
	count := len(g.clients)
	g.mu.Unlock()
	metrics.UpdateConnectedClients(count)
}

// drop removes every wallet bound to the client.
func (g *Gateway) drop(c *client) {
	g.mu.Lock()
	for wallet, bound := range g.clients {
		if bound == c {
			delete(g.clients, wallet)
		}
	}
	count := len(g.clients)
	g.mu.Unlock()
	metrics.UpdateConnectedClients(count)
}

// readPump decodes envelopes off one connection until it drops.
func (g *Gateway) readPump(c *client) {
	ctx := context.Background()
	defer func() {
		g.drop(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug(ctx, "websocket closed unexpectedly", logger.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			g.log.Debug(ctx, "malformed envelope dropped", logger.Error(err))
			continue
		}
		g.dispatch(ctx, c, env)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *client, env Envelope) {
	switch env.Event {
	case eventRegisterUser:
		g.onRegisterUser(ctx, c, env.Data)
	case eventRequestEntry:
		g.onRequestEntry(ctx, c, env.Data)
	case eventVote:
		g.onVote(ctx, c, env.Data)
	case eventNewLink:
		g.onNewLink(ctx, c, env.Data)
	case eventLinkClicked:
		g.onLinkClicked(ctx, env.Data)
	default:
		g.log.Debug(ctx, "unknown event dropped", logger.String("event", env.Event))
	}
}

func (g *Gateway) onRegisterUser(ctx context.Context, c *client, data json.RawMessage) {
	var p struct {
		Wallet   string `json:"wallet"`
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Wallet == "" {
		return
	}
	wallet := types.NormalizeID(p.Wallet)
	g.track(wallet, c)

	existing, err := g.deps.RegisterUser(ctx, wallet, p.Nickname)
	if err != nil {
		g.log.Error(ctx, "register failed", logger.String("wallet", wallet), logger.Error(err))
		return
	}
	if existing {
		c.push(EventExistingUserConfirmed, map[string]string{
			"wallet":   wallet,
			"nickname": p.Nickname,
		})
	}
}

func (g *Gateway) onRequestEntry(ctx context.Context, c *client, data json.RawMessage) {
	var p struct {
		Wallet   string `json:"wallet"`
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Wallet == "" {
		return
	}
	wallet := types.NormalizeID(p.Wallet)
	g.track(wallet, c)

	// A failed request leaves no session behind and sends nothing back; the
	// candidate re-requests once the store recovers.
	if err := g.deps.RequestEntry(ctx, wallet, p.Nickname); err != nil {
		g.log.Error(ctx, "entry request failed", logger.String("candidate", wallet), logger.Error(err))
	}
}

func (g *Gateway) onVote(ctx context.Context, c *client, data json.RawMessage) {
	var p struct {
		Candidate string `json:"candidate"`
		Verifier  string `json:"verifier"`
		Approve   bool   `json:"approve"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Candidate == "" || p.Verifier == "" {
		return
	}
	g.track(p.Verifier, c)
	g.deps.Vote(ctx, p.Candidate, p.Verifier, p.Approve)
}

func (g *Gateway) onNewLink(ctx context.Context, c *client, data json.RawMessage) {
	var p struct {
		Wallet string `json:"wallet"`
		Link   string `json:"link"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Wallet == "" || p.Link == "" {
		return
	}
	g.track(p.Wallet, c)

	allowed, nickname, err := g.deps.ShareLink(ctx, p.Wallet)
	if err != nil {
		g.log.Error(ctx, "share link failed", logger.String("wallet", p.Wallet), logger.Error(err))
		return
	}
	if !allowed {
		g.log.Info(ctx, "link broadcast blocked by trust score", logger.String("wallet", p.Wallet))
		return
	}
	g.Broadcast(ctx, EventNewLink, map[string]string{
		"link":     p.Link,
		"fromUser": nickname,
	})
}

func (g *Gateway) onLinkClicked(ctx context.Context, data json.RawMessage) {
	var p struct {
		FromUser string `json:"fromUser"`
		ToUser   string `json:"toUser"`
		Link     string `json:"link"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.FromUser == "" || p.ToUser == "" {
		return
	}
	from := types.NormalizeID(p.FromUser)
	to := types.NormalizeID(p.ToUser)

	granted, err := g.deps.LinkClicked(ctx, from, to, p.Link)
	if err != nil {
		g.log.Error(ctx, "link click failed", logger.String("from", from), logger.Error(err))
		return
	}
	event := EventLinkAccessDenied
	if granted {
		event = EventLinkAccessGranted
	}
	g.Send(ctx, to, event, map[string]string{
		"fromUser": from,
		"link":     p.Link,
	})
}
