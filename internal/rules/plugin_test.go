package rules

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
)

type staticOptions map[string]string

func (s staticOptions) Option(_ context.Context, _ int64, key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

func TestActionWithPluginPerformsNoRequestWithoutRoom(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	plugin := notify.NewPlugin(staticOptions{notify.OptionWebhook: srv.URL}, notify.NewDispatcherWithClient(srv.Client()))

	if _, err := NewNotifyRoomAction(plugin, "", "").After(context.Background(), testEvent()); err != nil {
		t.Fatalf("after: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected zero HTTP calls, got %d", hits.Load())
	}

	res, err := NewNotifyRoomAction(plugin, "general", "").After(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("after with room: %v", err)
	}
	if !res.OK() || hits.Load() != 1 {
		t.Fatalf("expected one successful call, got res=%+v hits=%d", res, hits.Load())
	}
}
