package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/vouch/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeDeps struct {
	mu sync.Mutex

	registered map[string]string
	existing   bool

	entries []string
	votes   []string

	shareAllowed  bool
	shareNickname string

	clickGranted bool
	clicks       []string
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{registered: make(map[string]string)}
}

func (f *fakeDeps) RegisterUser(_ context.Context, wallet, nickname string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[wallet] = nickname
	return f.existing, nil
}

func (f *fakeDeps) RequestEntry(_ context.Context, wallet, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, wallet)
	return nil
}

func (f *fakeDeps) Vote(_ context.Context, candidate, verifier string, approve bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vote := candidate + "/" + verifier + "/no"
	if approve {
		vote = candidate + "/" + verifier + "/yes"
	}
	f.votes = append(f.votes, vote)
}

func (f *fakeDeps) ShareLink(_ context.Context, _ string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shareAllowed, f.shareNickname, nil
}

func (f *fakeDeps) LinkClicked(_ context.Context, fromUser, toUser, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, fromUser+"->"+toUser)
	return f.clickGranted, nil
}

func (f *fakeDeps) votesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.votes...)
}

func (f *fakeDeps) entriesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entries...)
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("write envelope: %v", err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestGatewayRegisterAndPresence(t *testing.T) {
	convey.Convey("Given a gateway behind a test server", t, func() {
		deps := newFakeDeps()
		deps.existing = true
		gw := NewGateway(deps)
		server := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
		defer server.Close()

		conn := dial(t, server)
		defer conn.Close()

		convey.Convey("When a wallet registers", func() {
			sendEnvelope(t, conn, "registerUser", map[string]string{
				"wallet":   "0xABCDEF",
				"nickname": "alice",
			})

			convey.Convey("Then it becomes present under its normalized id", func() {
				waitFor(t, func() bool { return gw.Online("0xabcdef") })
				convey.So(gw.Online("0xABCDEF"), convey.ShouldBeTrue)
				convey.So(gw.ConnectedWallets(), convey.ShouldContain, "0xabcdef")
			})

			convey.Convey("Then a returning wallet gets a confirmation event", func() {
				env := readEnvelope(t, conn)
				convey.So(env.Event, convey.ShouldEqual, EventExistingUserConfirmed)
			})
		})
	})
}

func TestGatewayDisconnectClearsPresence(t *testing.T) {
	convey.Convey("Given a registered wallet", t, func() {
		deps := newFakeDeps()
		gw := NewGateway(deps)
		server := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
		defer server.Close()

		conn := dial(t, server)
		sendEnvelope(t, conn, "registerUser", map[string]string{"wallet": "0xaa", "nickname": "a"})
		waitFor(t, func() bool { return gw.Online("0xaa") })

		convey.Convey("When the connection drops", func() {
			conn.Close()

			convey.Convey("Then presence is cleared", func() {
				waitFor(t, func() bool { return !gw.Online("0xaa") })
				convey.So(gw.ConnectedWallets(), convey.ShouldBeEmpty)
			})
		})
	})
}

func TestGatewayEntryAndVote(t *testing.T) {
	convey.Convey("Given a connected gateway", t, func() {
		deps := newFakeDeps()
		gw := NewGateway(deps)
		server := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
		defer server.Close()

		conn := dial(t, server)
		defer conn.Close()

		convey.Convey("When a candidate requests entry", func() {
			sendEnvelope(t, conn, "requestEntry", map[string]string{
				"wallet":   "0xCAND",
				"nickname": "cand",
			})

			convey.Convey("Then the request reaches the service with a normalized id", func() {
				waitFor(t, func() bool { return len(deps.entriesSeen()) == 1 })
				convey.So(deps.entriesSeen()[0], convey.ShouldEqual, "0xcand")
			})
		})

		convey.Convey("When a verifier votes", func() {
			sendEnvelope(t, conn, "vote", map[string]any{
				"candidate": "0xcand",
				"verifier":  "0xVER",
				"approve":   true,
			})

			convey.Convey("Then the vote is forwarded and the verifier tracked", func() {
				waitFor(t, func() bool { return len(deps.votesSeen()) == 1 })
				convey.So(deps.votesSeen()[0], convey.ShouldEqual, "0xcand/0xVER/yes")
				convey.So(gw.Online("0xver"), convey.ShouldBeTrue)
			})
		})
	})
}

func TestGatewayLinkFlow(t *testing.T) {
	convey.Convey("Given two connected wallets", t, func() {
		deps := newFakeDeps()
		deps.shareAllowed = true
		deps.shareNickname = "alice"
		deps.clickGranted = true
		gw := NewGateway(deps)
		server := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
		defer server.Close()

		sharer := dial(t, server)
		defer sharer.Close()
		viewer := dial(t, server)
		defer viewer.Close()

		sendEnvelope(t, sharer, "registerUser", map[string]string{"wallet": "0xa", "nickname": "alice"})
		sendEnvelope(t, viewer, "registerUser", map[string]string{"wallet": "0xb", "nickname": "bob"})
		waitFor(t, func() bool { return gw.Online("0xa") && gw.Online("0xb") })

		convey.Convey("When a trusted wallet shares a link", func() {
			sendEnvelope(t, sharer, "newLink", map[string]string{
				"wallet": "0xa",
				"link":   "https://example.com/post/1",
			})

			convey.Convey("Then every client receives the broadcast", func() {
				env := readEnvelope(t, viewer)
				convey.So(env.Event, convey.ShouldEqual, EventNewLink)

				var p map[string]string
				convey.So(json.Unmarshal(env.Data, &p), convey.ShouldBeNil)
				convey.So(p["fromUser"], convey.ShouldEqual, "alice")
				convey.So(p["link"], convey.ShouldEqual, "https://example.com/post/1")
			})
		})

		convey.Convey("When a wallet clicks a shared link", func() {
			sendEnvelope(t, viewer, "linkClicked", map[string]string{
				"fromUser": "0xb",
				"toUser":   "0xa",
				"link":     "https://example.com/post/1",
			})

			convey.Convey("Then the owner learns the access decision", func() {
				env := readEnvelope(t, sharer)
				convey.So(env.Event, convey.ShouldEqual, EventLinkAccessGranted)
			})
		})
	})
}

func TestGatewaySendToOffline(t *testing.T) {
	convey.Convey("Given a gateway with no clients", t, func() {
		gw := NewGateway(newFakeDeps())

		convey.Convey("Then sends report non-delivery", func() {
			delivered := gw.Send(context.Background(), "0xnobody", "verificationRequested", nil)
			convey.So(delivered, convey.ShouldBeFalse)
		})
	})
}

func TestGatewayIgnoresMalformedFrames(t *testing.T) {
	convey.Convey("Given a connected client", t, func() {
		deps := newFakeDeps()
		gw := NewGateway(deps)
		server := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
		defer server.Close()

		conn := dial(t, server)
		defer conn.Close()

		convey.Convey("When it sends garbage and then a valid event", func() {
			err := conn.WriteMessage(websocket.TextMessage, []byte("not json"))
			convey.So(err, convey.ShouldBeNil)
			sendEnvelope(t, conn, "registerUser", map[string]string{"wallet": "0xok", "nickname": "ok"})

			convey.Convey("Then the valid event still lands", func() {
				waitFor(t, func() bool { return gw.Online("0xok") })
				convey.So(gw.Online("0xok"), convey.ShouldBeTrue)
			})
		})
	})
}
