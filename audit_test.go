package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(8)
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)

	for i := 0; i < 3; i++ {
		dispatcher.Emit(context.Background(), AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: auditEventSignInSuccess,
			AccountID: "id-1",
			Success:   true,
		})
	}
	dispatcher.Close()

	received := 0
	for received < 3 {
		select {
		case event := <-sink.Events():
			if event.EventType != auditEventSignInSuccess {
				t.Fatalf("unexpected event type %q", event.EventType)
			}
			received++
		case <-time.After(time.Second):
			t.Fatalf("received %d of 3 events", received)
		}
	}

	if dispatcher.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", dispatcher.Dropped())
	}
}

func TestAuditDispatcherDisabled(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: false}, NewChannelSink(1))
	if dispatcher != nil {
		t.Fatal("disabled audit must yield a nil dispatcher")
	}
	// Emitting through a nil dispatcher is a no-op.
	dispatcher.Emit(context.Background(), AuditEvent{})
	dispatcher.Close()
}

func TestJSONWriterSinkWritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventRegisterSuccess,
		AccountID: "id-1",
		Success:   true,
		Metadata:  map[string]string{"email": "a@example.com"},
	})

	line := strings.TrimSpace(buf.String())
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.EventType != auditEventRegisterSuccess || decoded.AccountID != "id-1" {
		t.Fatalf("fields lost in encoding: %+v", decoded)
	}
}

func TestEngineAuditCarriesClientIP(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	sink := NewChannelSink(16)
	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, newMemoryAccountStore())
	engine.audit = newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := engine.RegisterWithPassword(ctx, "Alice", "alice@example.com", "str0ng-password"); err != nil {
		t.Fatalf("RegisterWithPassword failed: %v", err)
	}
	engine.Close()

	for {
		select {
		case event := <-sink.Events():
			if event.EventType == auditEventRegisterSuccess {
				if event.IP != "203.0.113.7" {
					t.Fatalf("expected client IP on the event, got %q", event.IP)
				}
				return
			}
		case <-time.After(time.Second):
			t.Fatal("register_success event never arrived")
		}
	}
}
