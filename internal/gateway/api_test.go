package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CosmoTheDev/slacknotify/internal/config"
	"github.com/CosmoTheDev/slacknotify/internal/database"
	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/store"
)

// fakeSlack records every payload posted to it.
type fakeSlack struct {
	mu       sync.Mutex
	payloads []notify.Payload
	status   int
}

func newFakeSlack(t *testing.T) (*fakeSlack, *httptest.Server) {
	t.Helper()
	fs := &fakeSlack{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		var p notify.Payload
		if err := json.Unmarshal([]byte(r.PostForm.Get("payload")), &p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		fs.mu.Lock()
		fs.payloads = append(fs.payloads, p)
		status := fs.status
		fs.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (f *fakeSlack) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSlack) last(t *testing.T) notify.Payload {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		t.Fatalf("fake slack received no payloads")
	}
	return f.payloads[len(f.payloads)-1]
}

func newTestGateway(t *testing.T) (*Gateway, http.Handler) {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "gateway-test.db")})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	cfg := &config.Config{
		Gateway: config.GatewayConfig{BaseURL: "https://errors.example", Workers: 1, QueueSize: 4},
	}
	st := store.New(db, cfg.Gateway.BaseURL)
	gw := newGateway(cfg, db, st, notify.NewPlugin(st, notify.NewDispatcherWithClient(&http.Client{Timeout: 5 * time.Second})))
	return gw, buildHandler(gw)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
	return v
}

func createProject(t *testing.T, h http.Handler, webhook string) {
	t.Helper()
	body := `{"slug":"billing","name":"billing","team":"core","webhook":"` + webhook + `"}`
	rr := doJSON(t, h, http.MethodPost, "/api/projects", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func ingest(t *testing.T, h http.Handler, body string) ingestResponse {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/events", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("ingest: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decode[ingestResponse](t, rr)
}

const npeEvent = `{"event_id":"evt1","message":"NullPointerException","title":"checkout.process","culprit":"checkout.process","level":"error"}`

func TestIngestEventNotifiesNewThenRegression(t *testing.T) {
	slack, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)

	first := ingest(t, h, npeEvent)
	if first.Delivery.Status != DeliverySent {
		t.Fatalf("expected sent, got %+v", first.Delivery)
	}
	wantURL := "https://errors.example/billing/issues/" + itoa(first.GroupID) + "/"
	if first.GroupURL != wantURL {
		t.Fatalf("group url = %q, want %q", first.GroupURL, wantURL)
	}
	if got := slack.last(t).Text; got != "New event on <"+wantURL+"|core billing>" {
		t.Fatalf("first text = %q", got)
	}

	ingest(t, h, strings.Replace(npeEvent, "evt1", "evt2", 1))
	p := slack.last(t)
	if p.Text != "Regression on <"+wantURL+"|core billing>" {
		t.Fatalf("second text = %q", p.Text)
	}
	if len(p.Attachments) != 1 || p.Attachments[0].Color != "#f43f20" {
		t.Fatalf("unexpected attachments: %+v", p.Attachments)
	}
	f := p.Attachments[0].Fields[0]
	if f.Title != "NullPointerException" || f.Value != "checkout.process" || f.Short {
		t.Fatalf("unexpected field: %+v", f)
	}
	if p.Channel != "" {
		t.Fatalf("generic notify must not set channel, got %q", p.Channel)
	}
}

func TestIngestEventWithoutWebhookIsSkipped(t *testing.T) {
	slack, _ := newFakeSlack(t)
	gw, h := newTestGateway(t)
	createProject(t, h, "")

	resp := ingest(t, h, npeEvent)
	if resp.Delivery.Status != DeliverySkipped {
		t.Fatalf("expected skipped, got %+v", resp.Delivery)
	}
	if slack.count() != 0 {
		t.Fatalf("expected no webhook calls")
	}
	if st := gw.currentStatus(); st.Skipped != 1 || st.Sent != 0 {
		t.Fatalf("unexpected counters: %+v", st)
	}
}

func TestIngestEventSkipsDisabledProject(t *testing.T) {
	slack, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)
	if rr := doJSON(t, h, http.MethodPut, "/api/projects/billing/options", `{"enabled":"off"}`); rr.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if resp := ingest(t, h, npeEvent); resp.Delivery.Status != DeliverySkipped {
		t.Fatalf("expected skipped, got %+v", resp.Delivery)
	}
	if slack.count() != 0 {
		t.Fatalf("expected no webhook calls")
	}
}

func TestIngestEventRejectsResentEventID(t *testing.T) {
	slack, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)
	first := ingest(t, h, npeEvent)

	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/events", npeEvent)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if slack.count() != 1 {
		t.Fatalf("expected only the first event to notify, got %d calls", slack.count())
	}

	next := ingest(t, h, `{"event_id":"evt2","message":"NullPointerException","title":"checkout.process","culprit":"checkout.process","level":"error"}`)
	if next.GroupID != first.GroupID {
		t.Fatalf("expected same group, got %d and %d", first.GroupID, next.GroupID)
	}
	if p := slack.last(t); !strings.HasPrefix(p.Text, "Regression on <") {
		t.Fatalf("expected second occurrence to be a regression, got %q", p.Text)
	}
}

func TestIngestEventReportsTransportFailure(t *testing.T) {
	_, h := newTestGateway(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	createProject(t, h, deadURL)

	resp := ingest(t, h, npeEvent)
	if resp.Delivery.Status != DeliveryFailed || resp.Delivery.Error == "" {
		t.Fatalf("expected failed delivery with error, got %+v", resp.Delivery)
	}
}

func TestNotifyRoomImmediate(t *testing.T) {
	slack, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)
	ingest(t, h, npeEvent)

	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/rules/notify-room",
		`{"event_id":"evt1","room":"#ops","label":""}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[notifyRoomResponse](t, rr)
	if resp.Delivery.Status != DeliverySent {
		t.Fatalf("expected sent, got %+v", resp.Delivery)
	}
	if resp.Action != "Send a notification to a Slack #ops labeled Rule Triggered" {
		t.Fatalf("unexpected action description %q", resp.Action)
	}
	p := slack.last(t)
	if p.Channel != "#ops" || !strings.HasPrefix(p.Text, "Rule Triggered on <") {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestNotifyRoomWithoutRoomSendsNothing(t *testing.T) {
	slack, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)
	ingest(t, h, npeEvent)
	before := slack.count()

	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/rules/notify-room", `{"event_id":"evt1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decode[notifyRoomResponse](t, rr); resp.Delivery.Status != DeliverySkipped {
		t.Fatalf("expected skipped, got %+v", resp.Delivery)
	}
	if slack.count() != before {
		t.Fatalf("expected no additional webhook calls")
	}
}

func TestNotifyRoomSkipsDisabledProject(t *testing.T) {
	slack, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)
	ingest(t, h, npeEvent)
	before := slack.count()

	if rr := doJSON(t, h, http.MethodPut, "/api/projects/billing/options", `{"enabled":"false"}`); rr.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/rules/notify-room", `{"event_id":"evt1","room":"general"}`)
	if resp := decode[notifyRoomResponse](t, rr); resp.Delivery.Status != DeliverySkipped {
		t.Fatalf("expected skipped, got %+v", resp.Delivery)
	}
	if slack.count() != before {
		t.Fatalf("expected no additional webhook calls")
	}
}

func TestNotifyRoomDeferredRunsOnTaskRunner(t *testing.T) {
	slack, srv := newFakeSlack(t)
	gw, h := newTestGateway(t)
	createProject(t, h, srv.URL)
	ingest(t, h, npeEvent)
	before := slack.count()

	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/rules/notify-room",
		`{"event_id":"evt1","room":"general","label":"Deferred","deferred":true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if slack.count() != before {
		t.Fatalf("deferred request must not send before the runner picks it up")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		gw.runner.Wait()
	}()
	gw.runner.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for slack.count() == before {
		if time.Now().After(deadline) {
			t.Fatalf("deferred notification was not delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	p := slack.last(t)
	if p.Channel != "general" || !strings.HasPrefix(p.Text, "Deferred on <") {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestNotifyRoomUnknownEvent(t *testing.T) {
	_, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)

	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/rules/notify-room", `{"event_id":"nope","room":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPutOptionsValidatesKeysAndWebhook(t *testing.T) {
	_, h := newTestGateway(t)
	createProject(t, h, "")

	if rr := doJSON(t, h, http.MethodPut, "/api/projects/billing/options", `{"colour":"red"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown key: expected 400, got %d", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPut, "/api/projects/billing/options", `{"webhook":"not a url"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad url: expected 400, got %d", rr.Code)
	}

	rr := doJSON(t, h, http.MethodPut, "/api/projects/billing/options", `{"webhook":"https://hooks.example/x"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if opts := decode[map[string]string](t, rr); opts["webhook"] != "https://hooks.example/x" {
		t.Fatalf("unexpected options: %v", opts)
	}

	rr = doJSON(t, h, http.MethodPut, "/api/projects/billing/options", `{"webhook":""}`)
	if opts := decode[map[string]string](t, rr); len(opts) != 0 {
		t.Fatalf("expected webhook removed, got %v", opts)
	}
}

func TestCreateProjectRejectsDuplicate(t *testing.T) {
	_, h := newTestGateway(t)
	createProject(t, h, "")
	rr := doJSON(t, h, http.MethodPost, "/api/projects", `{"slug":"billing"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestTestNotification(t *testing.T) {
	slack, srv := newFakeSlack(t)
	_, h := newTestGateway(t)
	createProject(t, h, srv.URL)

	rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/test", ``)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	p := slack.last(t)
	if p.Text != "Test on <https://errors.example/billing/|core billing>" {
		t.Fatalf("unexpected text %q", p.Text)
	}
	if p.Attachments[0].Color != "#2788ce" {
		t.Fatalf("expected info color, got %q", p.Attachments[0].Color)
	}
}

func TestTestNotificationRequiresWebhook(t *testing.T) {
	_, h := newTestGateway(t)
	createProject(t, h, "")
	if rr := doJSON(t, h, http.MethodPost, "/api/projects/billing/test", ``); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUnknownProjectIs404(t *testing.T) {
	_, h := newTestGateway(t)
	if rr := doJSON(t, h, http.MethodGet, "/api/projects/"+url.PathEscape("ghost"), ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
