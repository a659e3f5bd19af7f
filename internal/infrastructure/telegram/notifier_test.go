package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
)

func TestNotifyPostsToRecipientChat(t *testing.T) {
	t.Parallel()

	var gotPath, gotChatID, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChatID = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("test-token")
	n.apiBase = server.URL

	err := n.Notify(context.Background(), "12345", "RELIANCE filing: Board Meeting Outcome")
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChatID != "12345" {
		t.Fatalf("unexpected chat id: %s", gotChatID)
	}
	if gotText == "" {
		t.Fatal("expected message text")
	}
}

func TestNotifyMapsFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewNotifier("test-token")
	n.apiBase = server.URL

	err := n.Notify(context.Background(), "12345", "text")
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestNotifyMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("")
	err := n.Notify(context.Background(), "12345", "text")
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}
