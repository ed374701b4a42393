package memory

import (
	"context"
	"errors"
	"testing"
)

func TestScreenshotStoreCopiesData(t *testing.T) {
	t.Parallel()

	store := NewScreenshotStore()
	payload := []byte("content")
	uri, err := store.PutScreenshot(context.Background(), "fail_0.png", payload)
	if err != nil {
		t.Fatalf("PutScreenshot() error = %v", err)
	}
	if uri != "memory://fail_0.png" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, ok := store.Get("fail_0.png")
	if !ok || string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if names := store.Names(); len(names) != 1 || names[0] != "fail_0.png" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestScreenshotStoreFailWith(t *testing.T) {
	t.Parallel()

	store := NewScreenshotStore()
	boom := errors.New("quota exceeded")
	store.FailWith(boom)
	if _, err := store.PutScreenshot(context.Background(), "x.png", nil); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}
