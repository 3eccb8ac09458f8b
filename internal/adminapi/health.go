package adminapi

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cast"
	"github.com/talkincode/shopsync/internal/webserver"
	"github.com/talkincode/shopsync/pkg/metrics"
)

func (a *API) registerHealthRoutes(srv *webserver.Server) {
	srv.GET("/health", a.health)
	srv.ApiGET("/health", a.health)
	srv.ApiGET("/metrics/:name", a.metricSeries)
}

// metricSeries returns the recorded samples of one metric, ?since= defaults to 1h
func (a *API) metricSeries(c echo.Context) error {
	since := time.Hour
	if v := c.QueryParam("since"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil || d <= 0 {
			return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid since parameter", nil)
		}
		since = d
	}
	points, err := metrics.Series(c.Param("name"), since)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
	return ok(c, points)
}

func (a *API) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, storeState := "ok", "ok"
	if err := a.Store.Ping(ctx); err != nil {
		status, storeState = "degraded", err.Error()
	}
	clients := 0
	if a.Hub != nil {
		clients = a.Hub.Clients()
	}
	body := map[string]interface{}{
		"status":  status,
		"uptime":  int64(time.Since(a.started).Seconds()),
		"clients": clients,
		"store": map[string]interface{}{
			"type":  a.Store.Name(),
			"state": storeState,
		},
		"cache":   a.Cache.Stats(),
		"metrics": metrics.Snapshot(),
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil {
			body["memory_rss"] = mem.RSS
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			body["cpu_percent"] = cpu
		}
	}
	return ok(c, body)
}
