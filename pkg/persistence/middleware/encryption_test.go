package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	original := event("run-1", 1, `{"message":"my-secret-sauce"}`)

	// 1. Push
	if err := secureStore.PushEvents(ctx, []*domain.EventRecord{original}); err != nil {
		t.Fatalf("PushEvents failed: %v", err)
	}
	if string(original.Payload) != `{"message":"my-secret-sauce"}` {
		t.Error("Middleware modified the caller's event!")
	}

	// 2. Verify Underlying Store directly (Should be encrypted)
	stored := rawEvents(t, underlyingStore, "run-1")
	if len(stored) != 1 {
		t.Fatalf("Expected 1 stored event, got %d", len(stored))
	}
	if strings.Contains(string(stored[0].Payload), "my-secret-sauce") {
		t.Fatalf("Expected secret to be hidden, found: %s", stored[0].Payload)
	}
	if !strings.Contains(string(stored[0].Payload), "__encrypted__") {
		t.Fatal("Expected __encrypted__ field in payload")
	}
	if stored[0].Sequence != 1 || stored[0].EventType != "log" {
		t.Errorf("Expected event metadata to pass through, got %+v", stored[0])
	}

	// 3. Read via Middleware (Should be decrypted)
	loaded, err := secureStore.GetEvents(ctx, domain.EventQuery{RunID: "run-1"})
	if err != nil {
		t.Fatalf("GetEvents via middleware failed: %v", err)
	}
	if string(loaded[0].Payload) != `{"message":"my-secret-sauce"}` {
		t.Errorf("Expected original payload, got %s", loaded[0].Payload)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	ctx := context.Background()

	// 1. Push with OLD key
	if err := secureStoreOld.PushEvents(ctx, []*domain.EventRecord{event("rot", 1, `"old"`)}); err != nil {
		t.Fatalf("PushEvents failed: %v", err)
	}

	// 2. Push with NEW key, read both back with NEW key + OLD fallback
	if err := secureStoreNew.PushEvents(ctx, []*domain.EventRecord{event("rot", 2, `"new"`)}); err != nil {
		t.Fatalf("PushEvents with new key failed: %v", err)
	}
	loaded, err := secureStoreNew.GetEvents(ctx, domain.EventQuery{RunID: "rot"})
	if err != nil {
		t.Fatalf("GetEvents with rotated key failed: %v", err)
	}
	if string(loaded[0].Payload) != `"old"` || string(loaded[1].Payload) != `"new"` {
		t.Errorf("Decryption with fallback key failed: %s, %s", loaded[0].Payload, loaded[1].Payload)
	}

	// 3. Verify we CANNOT read new-key events with just OLD key
	if _, err := secureStoreOld.GetEvents(ctx, domain.EventQuery{RunID: "rot"}); err == nil {
		t.Error("Expected failure when reading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainPayload(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)

	ctx := context.Background()
	if err := underlyingStore.PushEvents(ctx, []*domain.EventRecord{event("plain", 1, `{"message":"hi"}`)}); err != nil {
		t.Fatal(err)
	}
	if _, err := secureStore.GetEvents(ctx, domain.EventQuery{RunID: "plain"}); err == nil {
		t.Error("Expected failure for a payload without envelope")
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	parsed, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if string(parsed) != string(key) {
		t.Error("ParseKey returned a different key")
	}

	if _, err := middleware.ParseKey("not base64!"); err == nil {
		t.Error("Expected error for invalid base64")
	}
	if _, err := middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("Expected error for short key")
	}
}
