package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	gateway *Gateway
	hub     *Hub
	emitter *services.EmitterService
	url     string
}

func startTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	g := NewGateway(opts, services.NewRoomResolver(), discardLogger())
	r := chi.NewRouter()
	hub, err := g.InitializeSocketServer(r)
	require.NoError(t, err)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return &testServer{
		gateway: g,
		hub:     hub,
		emitter: services.NewEmitterService(g, discardLogger()),
		url:     "ws" + strings.TrimPrefix(srv.URL, "http") + opts.Path,
	}
}

func dial(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: msgType, Payload: raw}))
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var r received
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

// roundTrip sends a ping and waits for the pong so earlier messages have been
// handled by the server.
func roundTrip(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, MessagePing, nil)
	r := read(t, conn)
	require.Equal(t, string(domain.EventPong), r.Type)
}

func TestServer_AuthenticateSubscribeReceive(t *testing.T) {
	ts := startTestServer(t, DefaultOptions())
	conn := dial(t, ts)

	send(t, conn, MessageAuthenticate, domain.Identity{UserID: "u1", Role: domain.RoleTechnician})
	ack := read(t, conn)
	require.Equal(t, string(domain.EventAuthenticated), ack.Type)

	var reply domain.AuthenticatedReply
	require.NoError(t, json.Unmarshal(ack.Payload, &reply))
	assert.ElementsMatch(t, []string{"user:u1", "role:TECHNICIAN", "technicians"}, reply.Rooms)

	send(t, conn, MessageSubscribeTicket, "T1")
	roundTrip(t, conn)

	ts.emitter.EmitTicketCommented("T1", json.RawMessage(`{"body":"rebooted"}`))

	ev := read(t, conn)
	assert.Equal(t, string(domain.EventTicketCommented), ev.Type)
	assert.Equal(t, "ticket:T1", ev.Room)

	var p domain.TicketCommented
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, "T1", p.TicketID)
	assert.JSONEq(t, `{"body":"rebooted"}`, string(p.Comment))
	assert.False(t, p.Timestamp.IsZero())
}

func TestServer_SubscribePayloadForms(t *testing.T) {
	ts := startTestServer(t, DefaultOptions())
	conn := dial(t, ts)

	send(t, conn, MessageSubscribeTicket, 42)
	send(t, conn, MessageSubscribeTicket, map[string]any{"ticketId": "T7"})
	roundTrip(t, conn)

	info := ts.gateway.RoomsInfo()
	assert.Len(t, info["ticket:42"], 1)
	assert.Len(t, info["ticket:T7"], 1)

	send(t, conn, MessageUnsubscribeTicket, map[string]any{"ticketId": 42})
	roundTrip(t, conn)

	info = ts.gateway.RoomsInfo()
	assert.NotContains(t, info, "ticket:42")
	assert.Contains(t, info, "ticket:T7")
}

func TestServer_HandshakeRejection(t *testing.T) {
	ts := startTestServer(t, DefaultOptions())
	conn := dial(t, ts)

	send(t, conn, MessageAuthenticate, map[string]any{})
	r := read(t, conn)
	assert.Equal(t, string(domain.EventAuthError), r.Type)
	assert.Empty(t, ts.gateway.RoomsInfo())

	send(t, conn, MessageAuthenticate, domain.Identity{UserID: "u2", Role: domain.RoleUser, BranchID: "b1"})
	r = read(t, conn)
	assert.Equal(t, string(domain.EventAuthenticated), r.Type)

	send(t, conn, MessageAuthenticate, domain.Identity{UserID: "u3", Role: domain.RoleAdmin})
	r = read(t, conn)
	assert.Equal(t, string(domain.EventAuthError), r.Type)

	var reply domain.AuthErrorReply
	require.NoError(t, json.Unmarshal(r.Payload, &reply))
	assert.Equal(t, apperrors.ErrAlreadyAuthenticated.Error(), reply.Message)
	assert.Contains(t, ts.gateway.RoomsInfo(), "user:u2")
	assert.NotContains(t, ts.gateway.RoomsInfo(), "user:u3")
}

func TestServer_MalformedAndUnknownMessagesAreIgnored(t *testing.T) {
	ts := startTestServer(t, DefaultOptions())
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, conn, "dance", nil)
	send(t, conn, MessageSubscribeTicket, true)
	roundTrip(t, conn)

	assert.Equal(t, 1, ts.gateway.ConnectedClientsCount())
	assert.Empty(t, ts.gateway.RoomsInfo())
}

func TestServer_DisconnectRemovesClient(t *testing.T) {
	ts := startTestServer(t, DefaultOptions())
	conn := dial(t, ts)

	send(t, conn, MessageSubscribeTicket, "T1")
	roundTrip(t, conn)
	require.Equal(t, 1, ts.gateway.ConnectedClientsCount())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return ts.gateway.ConnectedClientsCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, ts.gateway.RoomsInfo())
}

func TestServer_OriginCheck(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowedOrigins = []string{"desk.bank.local"}
	ts := startTestServer(t, opts)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(ts.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://desk.bank.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestServer_InboundRateLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.MessageRPS = 0.001
	opts.MessageBurst = 2
	ts := startTestServer(t, opts)
	conn := dial(t, ts)

	send(t, conn, MessagePing, nil)
	send(t, conn, MessagePing, nil)
	send(t, conn, MessageSubscribeTicket, "dropped")

	assert.Equal(t, string(domain.EventPong), read(t, conn).Type)
	assert.Equal(t, string(domain.EventPong), read(t, conn).Type)

	// Give the server time to process the third message.
	time.Sleep(100 * time.Millisecond)
	assert.NotContains(t, ts.gateway.RoomsInfo(), "ticket:dropped")
}

func TestGateway_BeforeInitialization(t *testing.T) {
	g := NewGateway(DefaultOptions(), services.NewRoomResolver(), discardLogger())

	assert.Nil(t, g.Registry())
	assert.False(t, g.Initialized())
	_, ok := g.Locate()
	assert.False(t, ok)
	assert.Zero(t, g.ConnectedClientsCount())
	assert.Empty(t, g.RoomsInfo())

	emitter := services.NewEmitterService(g, discardLogger())
	assert.NotPanics(t, func() {
		emitter.EmitTicketStatusChanged("T1", "OPEN", "CLOSED", "u1")
		emitter.BroadcastToRooms([]string{"technicians"}, "custom", nil)
	})
	assert.NotPanics(t, g.Shutdown)
}

func TestGateway_InitializeOnce(t *testing.T) {
	g := NewGateway(DefaultOptions(), services.NewRoomResolver(), discardLogger())
	mux := http.NewServeMux()

	first, err := g.InitializeSocketServer(mux)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Same(t, first, g.Registry())

	broadcaster, ok := g.Locate()
	require.True(t, ok)
	assert.Same(t, first, broadcaster)

	second, err := g.InitializeSocketServer(mux)
	assert.ErrorIs(t, err, apperrors.ErrSocketAlreadyStarted)
	assert.Same(t, first, second)
}

func TestParseTicketID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: `"T1"`, want: "T1"},
		{raw: `42`, want: "42"},
		{raw: ` 7 `, want: "7"},
		{raw: `{"ticketId":"abc"}`, want: "abc"},
		{raw: `{"ticketId":99}`, want: "99"},
		{raw: `{"ticketId":{"x":1}}`, wantErr: true},
		{raw: `{}`, wantErr: true},
		{raw: `true`, wantErr: true},
		{raw: `["T1"]`, wantErr: true},
		{raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTicketID(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"desk.bank.local", "*.branches.bank.local"}

	assert.True(t, originAllowed("desk.bank.local", allowed))
	assert.True(t, originAllowed("b12.branches.bank.local", allowed))
	assert.True(t, originAllowed("branches.bank.local", allowed))
	assert.False(t, originAllowed("desk.bank.local.evil.com", allowed))
	assert.False(t, originAllowed("other.local", allowed))
}
