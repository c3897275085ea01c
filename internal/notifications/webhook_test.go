package notifications

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/castellan-media/castellan/internal/taskman"
)

func TestTaskFailedPostsDiscordPayload(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "discord")
	s.TaskFailed("fingerprint Heat", errors.New("file vanished"))

	select {
	case body := <-received:
		var payload struct {
			Embeds []struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			} `json:"embeds"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatal(err)
		}
		if len(payload.Embeds) != 1 {
			t.Fatalf("got %d embeds, want 1", len(payload.Embeds))
		}
		if !strings.Contains(payload.Embeds[0].Description, "fingerprint Heat") {
			t.Fatalf("description %q missing task name", payload.Embeds[0].Description)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestWatchTaskOnlyFiresOnFailure(t *testing.T) {
	calls := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- struct{}{}
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "generic")
	m := taskman.New()

	ok := m.Submit(taskman.TypeAPIRequest, "fine", func() (any, error) { return nil, nil })
	s.WatchTask(ok, "fine")

	bad := m.Submit(taskman.TypeAPIRequest, "broken", func() (any, error) { return nil, errors.New("boom") })
	s.WatchTask(bad, "broken")

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("failure webhook never fired")
	}

	// The successful task must not produce a second call.
	select {
	case <-calls:
		t.Fatal("webhook fired for a successful task")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnknownWebhookType(t *testing.T) {
	s := NewSender("http://127.0.0.1:0", "carrier-pigeon")
	if err := s.send("t", "m"); err == nil {
		t.Fatal("expected error for unknown webhook type")
	}
}
