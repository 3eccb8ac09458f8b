package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/store"
	"github.com/talkincode/shopsync/internal/store/gormstore"
	"github.com/talkincode/shopsync/internal/webserver"
)

type recorder struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recorder) add(ev broadcast.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Event(nil), r.events...)
}

type notifyCall struct {
	to, subject, body string
}

type fakeNotifier struct {
	calls []notifyCall
}

func (f *fakeNotifier) Notify(_ context.Context, to, subject, body string) error {
	f.calls = append(f.calls, notifyCall{to, subject, body})
	return nil
}

type testEnv struct {
	srv      *webserver.Server
	events   *recorder
	notifier *fakeNotifier
}

func newEnv(t *testing.T, st store.Store) *testEnv {
	t.Helper()
	if st == nil {
		s, err := gormstore.Open(config.DBConfig{Type: "sqlite", Dsn: filepath.Join(t.TempDir(), "api.db")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		st = s
	}
	b := broadcast.NewBroadcaster(nil)
	rec := &recorder{}
	require.NoError(t, b.Subscribe(rec.add))
	n := &fakeNotifier{}
	srv := webserver.NewServer(config.Default())
	Register(srv, Deps{Store: st, Broadcaster: b, Notifier: n, OwnerPhone: "+910000000000"})
	return &testEnv{srv: srv, events: rec, notifier: n}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestProductListServedFromCache(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/products", `{"name":"Tempered Glass","price":199}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	first := env.do(http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=60", first.Header().Get("Cache-Control"))

	second := env.do(http.MethodGet, "/api/products", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	rec = env.do(http.MethodPost, "/api/products", `{"name":"Back Cover","price":299}`)
	require.Equal(t, http.StatusOK, rec.Code)

	third := env.do(http.MethodGet, "/api/products", "")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	var list []domain.Product
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Back Cover", list[0].Name)
}

func TestProductPatchAndDelete(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/products", `{"name":"Charger","price":500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))

	rec = env.do(http.MethodPatch, "/api/products/"+p.ID, `{"price":450,"inStock":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, float64(450), patched.Price)
	assert.Equal(t, "Charger", patched.Name)

	rec = env.do(http.MethodPatch, "/api/products/"+p.ID, `{"price":"cheap"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPatch, "/api/products/missing", `{"price":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/products/"+p.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = env.do(http.MethodDelete, "/api/products/"+p.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProductValidation(t *testing.T) {
	env := newEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/products", `{"price":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.events.all())
}

func TestMutationsPublishWithOrigin(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/tracking", `{"qrId":"QR1","customerName":"Ravi"}`,
		headerClientID, "client-a", headerClientRef, "QR1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPut, "/api/tracking/QR1", `{"status":"Diagnostics"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodDelete, "/api/tracking/QR1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	events := env.events.all()
	require.Len(t, events, 3)
	assert.Equal(t, broadcast.TrackingAdded, events[0].Type)
	assert.Equal(t, "client-a", events[0].Origin)
	assert.Equal(t, "QR1", events[0].Ref)
	assert.Equal(t, broadcast.TrackingUpdated, events[1].Type)
	assert.Empty(t, events[1].Origin)
	assert.Equal(t, broadcast.TrackingDeleted, events[2].Type)
	key, err := events[2].DeletedKey()
	require.NoError(t, err)
	assert.Equal(t, "QR1", key)
}

func TestTrackingConflictAndMissing(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/tracking", `{"qrId":"QR1","customerName":"Ravi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/tracking", `{"qrId":"QR1","customerName":"Other"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/tracking/QR1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tr domain.Tracking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, "Ravi", tr.CustomerName)

	rec = env.do(http.MethodGet, "/api/tracking?status=Completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/tracking?since=not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/api/tracking/QR1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodDelete, "/api/tracking/QR1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, env.events.all(), 2)
}

func TestOrdersAndExport(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/orders", `{"orderId":"1700000000000","customer":{"name":"Asha","phone":"98450"},
		"items":[{"id":"p1","name":"Glass","price":99.5,"quantity":2}],"paymentMethod":"COD"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var o domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, 199.0, o.Total)

	rec = env.do(http.MethodPut, "/api/orders/1700000000000", `{"status":"Shipped"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/orders?status=shipped&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = env.do(http.MethodGet, "/api/orders/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "order_id,"))
	assert.Contains(t, lines[1], "1700000000000")
	assert.Contains(t, lines[1], "Glass")

	rec = env.do(http.MethodDelete, "/api/orders/1700000000000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/orders/1700000000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	kinds := []broadcast.Kind{}
	for _, ev := range env.events.all() {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []broadcast.Kind{broadcast.OrderAdded, broadcast.OrderUpdated, broadcast.OrderDeleted}, kinds)
}

func TestSendOrderSMS(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/send-order-sms", `{"orderDetails":{"id":"42","customer":{"name":"Asha","phone":"98450","address":"MG Road"},
		"items":[{"name":"Glass","price":100,"quantity":2}],"total":200,"paymentMethod":"COD"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Order received and SMS queued","orderId":"42"}`, rec.Body.String())

	require.Len(t, env.notifier.calls, 1)
	call := env.notifier.calls[0]
	assert.Equal(t, "+910000000000", call.to)
	assert.Contains(t, call.body, "New Order #42")
	assert.Contains(t, call.body, "Glass x2")

	rec = env.do(http.MethodPost, "/api/send-order-sms", `{"orderDetails":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type unavailableStore struct {
	store.Store
}

func (unavailableStore) ListProducts(context.Context, int) ([]domain.Product, error) {
	return nil, errors.Wrap(store.ErrUnavailable, "list products")
}

func (unavailableStore) Ping(context.Context) error {
	return errors.Wrap(store.ErrUnavailable, "ping")
}

func (unavailableStore) Name() string {
	return "down"
}

func TestUnavailableStoreMapsToTimeout(t *testing.T) {
	env := newEnv(t, unavailableStore{})

	rec := env.do(http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timeout":true`)

	rec = env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestMetricSeries(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/metrics/events_published?since=10m", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/metrics/events_published?since=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
