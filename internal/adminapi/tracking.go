package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/webserver"
)

func (a *API) registerTrackingRoutes(srv *webserver.Server) {
	srv.ApiGET("/tracking", a.listTracking)
	srv.ApiGET("/tracking/:qrId", a.getTracking)
	srv.ApiPOST("/tracking", a.createTracking)
	srv.ApiPUT("/tracking/:qrId", a.updateTracking)
	srv.ApiDELETE("/tracking/:qrId", a.deleteTracking)
}

// listTracking returns every record, newest first. ?since= keeps records
// updated after the given loosely formatted time, ?status= filters by stage.
func (a *API) listTracking(c echo.Context) error {
	rows, err := a.Store.ListTracking(c.Request().Context())
	if err != nil {
		return storeError(c, err, "Tracking")
	}
	status := strings.TrimSpace(c.QueryParam("status"))
	since := strings.TrimSpace(c.QueryParam("since"))
	if status == "" && since == "" {
		return ok(c, rows)
	}
	var cutoff time.Time
	if since != "" {
		if cutoff, err = dateparse.ParseLocal(since); err != nil {
			return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid since parameter", err.Error())
		}
	}
	filtered := make([]domain.Tracking, 0, len(rows))
	for _, t := range rows {
		if status != "" && !strings.EqualFold(t.Status, status) {
			continue
		}
		if !cutoff.IsZero() {
			updated := t.LastUpdatedTime()
			if updated.IsZero() {
				updated = t.RecordedAt
			}
			if !updated.After(cutoff) {
				continue
			}
		}
		filtered = append(filtered, t)
	}
	rows = filtered
	return ok(c, rows)
}

func (a *API) getTracking(c echo.Context) error {
	t, err := a.Store.GetTracking(c.Request().Context(), c.Param("qrId"))
	if err != nil {
		return storeError(c, err, "Tracking")
	}
	return ok(c, t)
}

func (a *API) createTracking(c echo.Context) error {
	var t domain.Tracking
	if err := bindJSON(c, &t); err != nil {
		return invalid(c, err)
	}
	saved, err := a.Store.CreateTracking(c.Request().Context(), &t)
	if err != nil {
		return storeError(c, err, "Tracking "+t.QRID)
	}
	a.publish(c, broadcast.TrackingAdded, saved)
	return ok(c, saved)
}

// updateTracking merges the body into the record, the qrId itself cannot change
func (a *API) updateTracking(c echo.Context) error {
	var raw map[string]interface{}
	if err := bindJSON(c, &raw); err != nil {
		return invalid(c, err)
	}
	patch, err := domain.NormalizeTrackingPatch(raw)
	if err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	}
	qrID := c.Param("qrId")
	saved, err := a.Store.UpdateTracking(c.Request().Context(), qrID, patch)
	if err != nil {
		return storeError(c, err, "Tracking "+qrID)
	}
	a.publish(c, broadcast.TrackingUpdated, saved)
	return ok(c, saved)
}

func (a *API) deleteTracking(c echo.Context) error {
	qrID := c.Param("qrId")
	if err := a.Store.DeleteTracking(c.Request().Context(), qrID); err != nil {
		return storeError(c, err, "Tracking "+qrID)
	}
	a.publish(c, broadcast.TrackingDeleted, broadcast.DeletePayload(domain.KindTracking, qrID))
	return success(c)
}
