package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/webserver"
)

func newTestApp(t *testing.T) (*Application, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.System.Workdir = dir
	cfg.Database.Dsn = filepath.Join(dir, "shop.db")
	cfg.Database.Seed = true

	a := NewApplication(cfg)
	require.NoError(t, a.Init(context.Background()))
	srv := webserver.NewServer(cfg)
	a.Mount(srv)
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(func() {
		ts.Close()
		a.Release()
	})
	return a, ts
}

func TestInitSeedsEmptyCatalog(t *testing.T) {
	a, _ := newTestApp(t)
	list, err := a.Store().ListProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, len(starterCatalog))

	require.NoError(t, a.seedCatalog(context.Background()))
	list, err = a.Store().ListProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, len(starterCatalog), "seeding twice adds nothing")
}

func TestMutationReachesRealtimeClients(t *testing.T) {
	a, ts := newTestApp(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?client=tab-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/tracking",
		strings.NewReader(`{"qrId":"QR77","customerName":"Meena","deviceModel":"Redmi 9"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", "tab-2")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := broadcast.DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, broadcast.TrackingAdded, ev.Type)
	assert.Equal(t, "tab-2", ev.Origin)

	var tr domain.Tracking
	require.NoError(t, ev.Decode(&tr))
	assert.Equal(t, "QR77", tr.QRID)
}

func TestHealthReportsStore(t *testing.T) {
	_, ts := newTestApp(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func keepAliveApp(t *testing.T, pings *atomic.Int32) *Application {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	cfg := config.Default()
	cfg.System.Mode = "production"
	cfg.KeepAlive.URL = ts.URL
	cfg.KeepAlive.InitialDelay = 20 * time.Millisecond
	a := NewApplication(cfg)
	a.sched = cron.New()
	return a
}

func TestKeepAliveSchedulesAfterDelay(t *testing.T) {
	var pings atomic.Int32
	a := keepAliveApp(t, &pings)
	a.initKeepAlive()
	require.Eventually(t, func() bool { return len(a.sched.Entries()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), pings.Load())
	a.stopKeepAlive()
}

func TestKeepAliveStopsOnRelease(t *testing.T) {
	var pings atomic.Int32
	a := keepAliveApp(t, &pings)
	a.initKeepAlive()
	a.Release()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), pings.Load())
	assert.Empty(t, a.sched.Entries())
}
