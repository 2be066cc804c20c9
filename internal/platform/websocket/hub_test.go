package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

var (
	clinicA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	clinicB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
)

func newClient(hub *Hub, id string, tenantID uuid.UUID) *Client {
	return &Client{
		ID:     id,
		Tenant: tenantID,
		Topics: []string{TopicFor(tenantID)},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
}

// ---------------------------------------------------------------------------
// Hub tests
// ---------------------------------------------------------------------------

func TestHub_RegisterClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Register(newClient(hub, "client-1", clinicA))

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicFor(clinicA)) != 1 {
		t.Fatalf("expected 1 client on clinic topic, got %d", hub.TopicCount(TopicFor(clinicA)))
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(hub, "client-2", clinicA)
	hub.Register(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicFor(clinicA)) != 0 {
		t.Fatalf("expected empty topic, got %d", hub.TopicCount(TopicFor(clinicA)))
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed")
	}

	// a second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_BroadcastIsTenantScoped(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := newClient(hub, "a", clinicA)
	b := newClient(hub, "b", clinicB)
	hub.Register(a)
	hub.Register(b)

	scope := tenant.Scope{TenantID: clinicA}
	ev := ChangeEvent(scope, "appointment", ActionCreated, uuid.New())
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-a.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if received.Type != "appointment.created" {
			t.Errorf("expected appointment.created, got %s", received.Type)
		}
		if received.ResourceType != "appointment" {
			t.Errorf("expected resource_type appointment, got %s", received.ResourceType)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case <-b.Send:
		t.Fatal("other clinic should not receive the event")
	default:
	}
}

func TestHub_SubscribeRejectsOtherTenants(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(hub, "c", clinicA)
	hub.Register(client)

	own := ProfessionalTopic(clinicA, uuid.New())
	hub.ProcessMessage(client, ClientMessage{
		Action: "subscribe",
		Topics: []string{own, TopicFor(clinicB), TopicFor(clinicA)},
	})

	if hub.TopicCount(own) != 1 {
		t.Errorf("expected subscription to own professional topic")
	}
	if hub.TopicCount(TopicFor(clinicB)) != 0 {
		t.Errorf("expected cross-tenant subscription to be refused")
	}
	if len(client.Topics) != 2 {
		t.Errorf("expected 2 topics without duplicates, got %v", client.Topics)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient(hub, "c", clinicA)
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{TopicFor(clinicA)}})

	if hub.TopicCount(TopicFor(clinicA)) != 0 {
		t.Errorf("expected topic to be empty")
	}
	if len(client.Topics) != 0 {
		t.Errorf("expected no topics, got %v", client.Topics)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("client should stay registered")
	}
}

func TestHub_BroadcastToEmptyTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Broadcast("tenant:nobody", Event{Type: "patient.deleted"})
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{ID: "slow", Tenant: clinicA, Topics: []string{TopicFor(clinicA)}, Send: make(chan []byte, 1)}
	hub.Register(client)

	hub.Broadcast(TopicFor(clinicA), Event{Type: "block.created"})
	hub.Broadcast(TopicFor(clinicA), Event{Type: "block.updated"})

	if len(client.Send) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(client.Send))
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newClient(hub, uuid.NewString(), clinicA)
			hub.Register(c)
			hub.Broadcast(TopicFor(clinicA), Event{Type: "patient.updated"})
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestChangeEvent(t *testing.T) {
	scope := tenant.Scope{TenantID: clinicA}

	ev := ChangeEvent(scope, "availability", ActionReplaced, uuid.Nil)
	if ev.ResourceID != "" {
		t.Errorf("expected empty resource id, got %q", ev.ResourceID)
	}
	if ev.Topic != "tenant:"+clinicA.String() {
		t.Errorf("unexpected topic %q", ev.Topic)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"type":"availability.replaced"`, `"resource_type":"availability"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected %s in %s", key, data)
		}
	}
	if strings.Contains(string(data), "resource_id") {
		t.Errorf("resource_id should be omitted: %s", data)
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func TestHandler_RegisterRoutes(t *testing.T) {
	handler := NewHandler(NewHub(zerolog.Nop()), nil)

	e := echo.New()
	handler.RegisterRoutes(e.Group(""))

	for _, r := range e.Routes() {
		if r.Path == "/ws" && r.Method == http.MethodGet {
			return
		}
	}
	t.Fatal("expected GET /ws route to be registered")
}

func TestHandler_RequiresScope(t *testing.T) {
	handler := NewHandler(NewHub(zerolog.Nop()), nil)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws", nil), httptest.NewRecorder())

	err := handler.HandleConnect(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	handler := NewHandler(NewHub(zerolog.Nop()), nil)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws", nil), rec)
	tenant.Set(c, tenant.Scope{TenantID: clinicA})

	if err := handler.HandleConnect(c); err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	handler := NewHandler(NewHub(zerolog.Nop()), []string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://evil.example")
	if handler.upgrader.CheckOrigin(req) {
		t.Error("expected foreign origin to be rejected")
	}
	req.Header.Set("Origin", "http://localhost:5173")
	if !handler.upgrader.CheckOrigin(req) {
		t.Error("expected configured origin to be accepted")
	}
}

func TestHandler_FullUpgradeReceivesClinicEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub, []string{"*"})

	e := echo.New()
	g := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenant.Set(c, tenant.Scope{TenantID: clinicA})
			return next(c)
		}
	})
	handler.RegisterRoutes(g)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount(TopicFor(clinicA)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	id := uuid.New()
	_ = hub.Publish(context.Background(), ChangeEvent(tenant.Scope{TenantID: clinicA}, "block", ActionDeleted, id))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "block.deleted" || ev.ResourceID != id.String() {
		t.Errorf("unexpected event %+v", ev)
	}
}
