package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go-taskboard/internal/events"
	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	fail     bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) message(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[i]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversByScope(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	locA, locB := uuid.New(), uuid.New()
	member := uuid.New()
	national := &fakeConn{}
	managerA := &fakeConn{}
	own := &fakeConn{}
	hub.Register(&Client{Conn: national, Scope: rbac.Scope{Allowed: true, Level: model.ScopeNational, National: true}})
	hub.Register(&Client{Conn: managerA, Scope: rbac.Scope{Allowed: true, Level: model.ScopeLocality, LocalityID: &locA}})
	hub.Register(&Client{Conn: own, Scope: rbac.Scope{Allowed: true, Level: model.ScopeOwn, OwnUserID: &member}})
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 3 })

	hub.Publish(events.TaskEvent{Type: events.TaskUpdated, TaskID: uuid.New(), LocalityID: locA, Status: model.StatusStarted})
	hub.Publish(events.TaskEvent{Type: events.TaskUpdated, TaskID: uuid.New(), LocalityID: locB, AssignedToID: &member})

	waitFor(t, "national delivery", func() bool { return national.count() == 2 })
	waitFor(t, "own delivery", func() bool { return own.count() == 1 })
	if managerA.count() != 1 {
		t.Fatalf("locality client must only get its locality, got %d", managerA.count())
	}

	var ev events.TaskEvent
	if err := json.Unmarshal(managerA.message(0), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.LocalityID != locA || ev.Status != model.StatusStarted {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestHubDropsFailingClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	broken := &fakeConn{fail: true}
	healthy := &fakeConn{}
	scope := rbac.Scope{Allowed: true, National: true}
	hub.Register(&Client{Conn: broken, Scope: scope})
	hub.Register(&Client{Conn: healthy, Scope: scope})
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 2 })

	hub.Publish(events.TaskEvent{Type: events.TaskCreated, TaskID: uuid.New(), LocalityID: uuid.New()})
	waitFor(t, "healthy delivery", func() bool { return healthy.count() == 1 })
	if !broken.isClosed() || hub.ClientCount() != 1 {
		t.Fatalf("broken client must be closed and removed, %d clients left", hub.ClientCount())
	}

	cancel()
	waitFor(t, "shutdown", func() bool { return healthy.isClosed() })
	if hub.ClientCount() != 0 {
		t.Fatalf("shutdown must drop every client")
	}
}

func TestHubRedactsPersonIDsForHidePIIClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	scope := rbac.Scope{Allowed: true, Level: model.ScopeNational, National: true}
	executive := &fakeConn{}
	national := &fakeConn{}
	hub.Register(&Client{Conn: executive, Scope: scope, HidePII: true})
	hub.Register(&Client{Conn: national, Scope: scope})
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 2 })

	assignee := uuid.New()
	hub.Publish(events.TaskEvent{Type: events.TaskUpdated, TaskID: uuid.New(), LocalityID: uuid.New(), AssignedToID: &assignee, CreatedBy: uuid.NewString()})
	waitFor(t, "delivery", func() bool { return executive.count() == 1 && national.count() == 1 })

	raw := string(executive.message(0))
	if strings.Contains(raw, "assignedToId") || strings.Contains(raw, "createdBy") || strings.Contains(raw, assignee.String()) {
		t.Fatalf("person ids leaked to a hide-PII client: %s", raw)
	}
	if !strings.Contains(string(national.message(0)), assignee.String()) {
		t.Fatalf("regular clients keep the assignee: %s", national.message(0))
	}
}

func TestHubDoesNotBlockAfterShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	live := &Client{Conn: &fakeConn{}, Scope: rbac.Scope{Allowed: true, National: true}}
	hub.Register(live)
	cancel()
	<-stopped

	late := &fakeConn{}
	finished := make(chan struct{})
	go func() {
		hub.Unregister(live)
		hub.Register(&Client{Conn: late})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("register/unregister blocked on a stopped hub")
	}
	if !late.isClosed() {
		t.Fatalf("a connection registered after shutdown must be closed")
	}
}
