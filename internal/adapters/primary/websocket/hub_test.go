package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub() *Hub {
	return NewHub(services.NewRoomResolver(), discardLogger())
}

func newTestClient(id string, queue int) *Client {
	return &Client{
		id:    id,
		send:  make(chan []byte, queue),
		rooms: make(map[string]struct{}),
	}
}

func connect(h *Hub, id string, queue int) *Client {
	c := newTestClient(id, queue)
	h.OnConnect(c)
	return c
}

// drain returns every queued message without blocking.
func drain(t *testing.T, c *Client) []received {
	t.Helper()
	var out []received
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			var r received
			require.NoError(t, json.Unmarshal(msg, &r))
			out = append(out, r)
		default:
			return out
		}
	}
}

func countType(msgs []received, eventType domain.EventType) int {
	n := 0
	for _, m := range msgs {
		if m.Type == string(eventType) {
			n++
		}
	}
	return n
}

func TestHub_OnConnectStartsWithoutRooms(t *testing.T) {
	h := newTestHub()
	c := connect(h, "c1", 8)

	assert.Equal(t, 1, h.ClientCount())
	assert.Empty(t, h.RoomsOf(c.ID()))
	assert.Empty(t, h.RoomsInfo())
}

func TestHub_Authenticate(t *testing.T) {
	t.Run("technician joins identity rooms and gets ack", func(t *testing.T) {
		h := newTestHub()
		c := connect(h, "c1", 8)

		rooms, err := h.Authenticate("c1", domain.Identity{UserID: "u1", Role: domain.RoleTechnician})
		require.NoError(t, err)

		want := []string{"role:TECHNICIAN", "technicians", "user:u1"}
		assert.ElementsMatch(t, want, rooms)
		assert.Equal(t, want, h.RoomsOf("c1"))

		msgs := drain(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, string(domain.EventAuthenticated), msgs[0].Type)
		assert.Empty(t, msgs[0].Room)

		var reply domain.AuthenticatedReply
		require.NoError(t, json.Unmarshal(msgs[0].Payload, &reply))
		assert.Equal(t, "u1", reply.UserID)
		assert.ElementsMatch(t, want, reply.Rooms)
	})

	t.Run("missing user id is rejected then a valid retry succeeds", func(t *testing.T) {
		h := newTestHub()
		c := connect(h, "c1", 8)

		_, err := h.Authenticate("c1", domain.Identity{})
		assert.ErrorIs(t, err, apperrors.ErrUserIDRequired)
		assert.Empty(t, h.RoomsOf("c1"))

		msgs := drain(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, string(domain.EventAuthError), msgs[0].Type)

		var reply domain.AuthErrorReply
		require.NoError(t, json.Unmarshal(msgs[0].Payload, &reply))
		assert.Equal(t, "userId is required", reply.Message)

		_, err = h.Authenticate("c1", domain.Identity{UserID: "u2", Role: domain.RoleUser, BranchID: "b1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"branch:b1", "role:USER", "user:u2"}, h.RoomsOf("c1"))
		assert.Equal(t, 1, countType(drain(t, c), domain.EventAuthenticated))
	})

	t.Run("second authenticate is refused and rooms stay", func(t *testing.T) {
		h := newTestHub()
		c := connect(h, "c1", 8)

		_, err := h.Authenticate("c1", domain.Identity{UserID: "u1", Role: domain.RoleUser})
		require.NoError(t, err)
		before := h.RoomsOf("c1")
		drain(t, c)

		_, err = h.Authenticate("c1", domain.Identity{UserID: "u9", Role: domain.RoleAdmin})
		assert.ErrorIs(t, err, apperrors.ErrAlreadyAuthenticated)
		assert.Equal(t, before, h.RoomsOf("c1"))

		msgs := drain(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, string(domain.EventAuthError), msgs[0].Type)
	})

	t.Run("unknown connection", func(t *testing.T) {
		h := newTestHub()
		_, err := h.Authenticate("ghost", domain.Identity{UserID: "u1"})
		assert.ErrorIs(t, err, apperrors.ErrConnectionNotFound)
	})
}

func TestHub_JoinLeave(t *testing.T) {
	h := newTestHub()
	connect(h, "c1", 8)

	h.Join("c1", "ticket:T1")
	h.Join("c1", "ticket:T1")
	assert.Equal(t, map[string][]string{"ticket:T1": {"c1"}}, h.RoomsInfo())

	h.Leave("c1", "ticket:T1")
	h.Leave("c1", "ticket:T1")
	assert.Empty(t, h.RoomsInfo())

	assert.NotPanics(t, func() {
		h.Join("ghost", "ticket:T1")
		h.Leave("ghost", "ticket:T1")
	})
	assert.Empty(t, h.RoomsInfo())
}

func TestHub_PublishToEmptyRoomIsNoop(t *testing.T) {
	h := newTestHub()
	c := connect(h, "c1", 8)

	assert.NotPanics(t, func() {
		h.Publish("ticket:nobody", domain.EventTicketUpdated, map[string]string{"id": "x"})
	})
	assert.Empty(t, drain(t, c))
}

func TestHub_PublishPreservesOrder(t *testing.T) {
	h := newTestHub()
	c := connect(h, "c1", 8)
	h.Join("c1", "ticket:T1")

	h.Publish("ticket:T1", domain.EventTicketUpdated, map[string]int{"seq": 1})
	h.Publish("ticket:T1", domain.EventTicketCommented, map[string]int{"seq": 2})

	msgs := drain(t, c)
	require.Len(t, msgs, 2)
	assert.Equal(t, string(domain.EventTicketUpdated), msgs[0].Type)
	assert.Equal(t, string(domain.EventTicketCommented), msgs[1].Type)
	assert.Equal(t, "ticket:T1", msgs[0].Room)
}

func TestHub_PublishToManyDeliversPerRoom(t *testing.T) {
	h := newTestHub()
	c := connect(h, "c1", 8)
	h.Join("c1", "technicians")
	h.Join("c1", "ticket:T1")

	h.PublishToMany([]string{"ticket:T1", "technicians", "branch:none"}, domain.EventTicketStatusChanged, nil)

	msgs := drain(t, c)
	require.Len(t, msgs, 2)
	assert.Equal(t, "ticket:T1", msgs[0].Room)
	assert.Equal(t, "technicians", msgs[1].Room)
}

func TestHub_DisconnectCleanup(t *testing.T) {
	h := newTestHub()
	c := connect(h, "c1", 8)
	other := connect(h, "c2", 8)
	h.Join("c1", "ticket:solo")
	h.Join("c1", "technicians")
	h.Join("c2", "technicians")

	h.OnDisconnect("c1")
	assert.Equal(t, 1, h.ClientCount())
	assert.Equal(t, map[string][]string{"technicians": {"c2"}}, h.RoomsInfo())

	_, open := <-c.send
	assert.False(t, open, "send queue should be closed")

	h.Publish("ticket:solo", domain.EventTicketUpdated, nil)
	assert.Empty(t, drain(t, other))

	assert.NotPanics(t, func() {
		h.OnDisconnect("c1")
		h.OnDisconnect("never-existed")
	})
	assert.Equal(t, 1, h.ClientCount())
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	h := newTestHub()
	slow := connect(h, "slow", 1)
	fast := connect(h, "fast", 8)
	h.Join("slow", "technicians")
	h.Join("fast", "technicians")

	h.Publish("technicians", domain.EventTicketUpdated, map[string]int{"seq": 1})
	h.Publish("technicians", domain.EventTicketUpdated, map[string]int{"seq": 2})

	assert.Equal(t, 1, h.ClientCount())
	assert.Equal(t, map[string][]string{"technicians": {"fast"}}, h.RoomsInfo())
	assert.Len(t, drain(t, fast), 2)

	// The slow client keeps what was queued before it was dropped.
	assert.Len(t, drain(t, slow), 1)
}

func TestHub_RoomsInfoSorted(t *testing.T) {
	h := newTestHub()
	for _, id := range []string{"c3", "c1", "c2"} {
		connect(h, id, 1)
		h.Join(id, "technicians")
	}

	assert.Equal(t, []string{"c1", "c2", "c3"}, h.RoomsInfo()["technicians"])
}

func TestHub_Shutdown(t *testing.T) {
	h := newTestHub()
	connect(h, "c1", 1)
	connect(h, "c2", 1)

	h.Shutdown()
	assert.Zero(t, h.ClientCount())
}

// fanOutFixture wires a real emitter to an initialized gateway.
func fanOutFixture(t *testing.T) (*Hub, ports.EventEmitter) {
	t.Helper()
	g := NewGateway(DefaultOptions(), services.NewRoomResolver(), discardLogger())
	hub, err := g.InitializeSocketServer(http.NewServeMux())
	require.NoError(t, err)

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	emitter := services.NewEmitterService(g, discardLogger(), services.WithClock(func() time.Time { return fixed }))
	return hub, emitter
}

func TestFanOut_StatusChangedCountsPerRoom(t *testing.T) {
	hub, emitter := fanOutFixture(t)

	subscriberOnly := connect(hub, "sub", 8)
	hub.Join("sub", "ticket:T")

	techOnly := connect(hub, "tech", 8)
	_, err := hub.Authenticate("tech", domain.Identity{UserID: "t1", Role: domain.RoleTechnician})
	require.NoError(t, err)

	both := connect(hub, "both", 8)
	_, err = hub.Authenticate("both", domain.Identity{UserID: "t2", Role: domain.RoleAdmin})
	require.NoError(t, err)
	hub.Join("both", "ticket:T")

	bystander := connect(hub, "by", 8)
	_, err = hub.Authenticate("by", domain.Identity{UserID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	for _, c := range []*Client{subscriberOnly, techOnly, both, bystander} {
		drain(t, c)
	}

	emitter.EmitTicketStatusChanged("T", "OPEN", "RESOLVED", "actor")

	total := 0
	for _, c := range []*Client{subscriberOnly, techOnly, both, bystander} {
		msgs := drain(t, c)
		for _, m := range msgs {
			require.Equal(t, string(domain.EventTicketStatusChanged), m.Type)
			var p domain.TicketStatusChanged
			require.NoError(t, json.Unmarshal(m.Payload, &p))
			assert.Equal(t, "OPEN", p.OldStatus)
			assert.Equal(t, "RESOLVED", p.NewStatus)
		}
		total += len(msgs)
	}

	// N=2 ticket subscribers plus M=2 technicians, "both" counted twice.
	assert.Equal(t, 4, total)
}

func TestFanOut_TicketCreatedScenario(t *testing.T) {
	hub, emitter := fanOutFixture(t)

	c1 := connect(hub, "c1", 8)
	rooms, err := hub.Authenticate("c1", domain.Identity{UserID: "u1", Role: domain.RoleTechnician})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user:u1", "role:TECHNICIAN", "technicians"}, rooms)

	c2 := connect(hub, "c2", 8)
	rooms, err = hub.Authenticate("c2", domain.Identity{UserID: "u2", Role: domain.RoleUser, BranchID: "b1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user:u2", "role:USER", "branch:b1"}, rooms)

	hub.Join("c1", "ticket:T1")
	drain(t, c1)
	drain(t, c2)

	emitter.EmitTicketCreated(ports.CreateTicketEventParams{
		ID:           "T1",
		TicketNumber: "TKT-100",
		Title:        "Printer offline",
		Status:       "OPEN",
		Priority:     "HIGH",
		CreatedBy:    "u2",
		BranchID:     "b1",
	})

	got1 := drain(t, c1)
	require.Len(t, got1, 1)
	assert.Equal(t, "technicians", got1[0].Room)

	got2 := drain(t, c2)
	require.Len(t, got2, 2)
	assert.ElementsMatch(t, []string{"branch:b1", "user:u2"}, []string{got2[0].Room, got2[1].Room})

	var p domain.TicketCreated
	require.NoError(t, json.Unmarshal(got2[0].Payload, &p))
	assert.Equal(t, "TKT-100", p.TicketNumber)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), p.Timestamp)
}

func TestFanOut_BatchOrderPerRoom(t *testing.T) {
	hub, emitter := fanOutFixture(t)

	c := connect(hub, "c1", 16)
	hub.Join("c1", "ticket:A")
	hub.Join("c1", "ticket:B")

	emitter.EmitBatchTicketUpdate([]string{"A", "B", "A"}, domain.Changes{"priority": "LOW"}, "u1")

	msgs := drain(t, c)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"ticket:A", "ticket:B", "ticket:A"}, []string{msgs[0].Room, msgs[1].Room, msgs[2].Room})
	for _, m := range msgs {
		assert.Equal(t, string(domain.EventTicketUpdated), m.Type)
	}
}
