package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	// Mask keys containing "password" or "ssn"
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	if err != nil {
		t.Fatal(err)
	}
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	payload := `{"username":"jdoe","user_password":"secret123","details":{"address":"123 St","ssn_number":"999-99-9999"},"items":[{"password":"x"}]}`
	ev := event("pii", 1, payload)

	// 1. Push
	if err := secureStore.PushEvents(ctx, []*domain.EventRecord{ev}); err != nil {
		t.Fatalf("PushEvents failed: %v", err)
	}

	// Verify the caller's event is NOT MODIFIED
	if string(ev.Payload) != payload {
		t.Error("Middleware modified the caller's event!")
	}

	// 2. Read from Underlying Store (Should be masked)
	var stored map[string]any
	if err := json.Unmarshal(rawEvents(t, underlyingStore, "pii")[0].Payload, &stored); err != nil {
		t.Fatal(err)
	}

	if stored["username"] != "jdoe" {
		t.Error("Username shouldn't be masked")
	}
	if stored["user_password"] != middleware.Mask {
		t.Errorf("Password should be masked, got: %v", stored["user_password"])
	}
	details := stored["details"].(map[string]any)
	if details["ssn_number"] != middleware.Mask {
		t.Errorf("Nested SSN should be masked, got: %v", details["ssn_number"])
	}
	if details["address"] != "123 St" {
		t.Error("Address shouldn't be masked")
	}
	item := stored["items"].([]any)[0].(map[string]any)
	if item["password"] != middleware.Mask {
		t.Errorf("Password inside list should be masked, got: %v", item["password"])
	}
}

func TestPIIMiddleware_Untouched(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password"})
	if err != nil {
		t.Fatal(err)
	}

	// Payloads without matches keep their exact bytes.
	payload := `{"b":1,  "a":"x"}`
	if err := mw(underlyingStore).PushEvents(context.Background(), []*domain.EventRecord{event("keep", 1, payload), event("keep", 2, `"scalar"`)}); err != nil {
		t.Fatal(err)
	}
	stored := rawEvents(t, underlyingStore, "keep")
	if string(stored[0].Payload) != payload || string(stored[1].Payload) != `"scalar"` {
		t.Errorf("Expected payloads to be unchanged, got %s and %s", stored[0].Payload, stored[1].Payload)
	}
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewPIIMiddleware([]string{"("}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestChain_MasksBeforeEncrypting(t *testing.T) {
	underlyingStore := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"token"})
	if err != nil {
		t.Fatal(err)
	}
	enc := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	store := middleware.Chain(underlyingStore, pii, enc)

	ctx := context.Background()
	if err := store.PushEvents(ctx, []*domain.EventRecord{event("chain", 1, `{"token":"abc","message":"hi"}`)}); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.GetEvents(ctx, domain.EventQuery{RunID: "chain"})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(loaded[0].Payload, &got); err != nil {
		t.Fatal(err)
	}
	if got["token"] != middleware.Mask || got["message"] != "hi" {
		t.Errorf("Expected masked token and readable message, got %v", got)
	}
}
