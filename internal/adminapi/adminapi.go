package adminapi

import (
	"errors"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/cache"
	"github.com/talkincode/shopsync/internal/notify"
	"github.com/talkincode/shopsync/internal/store"
	"github.com/talkincode/shopsync/internal/webserver"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	headerClientID  = "X-Client-ID"
	headerClientRef = "X-Client-Ref"
)

// Deps are the collaborators the handlers are built from
type Deps struct {
	Store       store.Store
	Cache       *cache.ProductListCache
	Broadcaster *broadcast.Broadcaster
	Hub         *broadcast.Hub
	Notifier    notify.Notifier
	OwnerPhone  string
	ListLimit   int
}

// API serves the storefront rest endpoints and the realtime channel
type API struct {
	Deps
	started time.Time
}

// Register mounts every route on srv
func Register(srv *webserver.Server, d Deps) *API {
	if d.Cache == nil {
		d.Cache = cache.NewProductListCache(cache.DefaultProductTTL)
	}
	if d.Broadcaster == nil {
		d.Broadcaster = broadcast.NewBroadcaster(nil)
	}
	if d.Notifier == nil {
		d.Notifier = notify.LogNotifier{}
	}
	if d.ListLimit <= 0 {
		d.ListLimit = store.DefaultListLimit
	}
	a := &API{Deps: d, started: time.Now()}
	a.registerProductRoutes(srv)
	a.registerTrackingRoutes(srv)
	a.registerOrderRoutes(srv)
	a.registerNotifyRoutes(srv)
	a.registerHealthRoutes(srv)
	a.registerRealtimeRoutes(srv)
	return a
}

// fail writes the api error body
func fail(c echo.Context, status int, code, msg string, details interface{}) error {
	body := map[string]interface{}{
		"error": msg,
		"code":  code,
	}
	if details != nil {
		body["details"] = details
	}
	if status == http.StatusGatewayTimeout {
		body["timeout"] = true
	}
	return c.JSON(status, body)
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func success(c echo.Context) error {
	return ok(c, map[string]interface{}{"success": true})
}

// storeError maps the store taxonomy onto http statuses
func storeError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
	case errors.Is(err, store.ErrDuplicateKey):
		return fail(c, http.StatusConflict, "DUPLICATE_KEY", what+" already exists", nil)
	case errors.Is(err, store.ErrUnavailable):
		zap.L().Warn("adminapi: store unavailable", zap.String("entity", what), zap.Error(err))
		return fail(c, http.StatusGatewayTimeout, "STORE_UNAVAILABLE", "Database query timeout - please try again", nil)
	case errors.Is(err, store.ErrValidation):
		return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	default:
		zap.L().Error("adminapi: store error", zap.String("entity", what), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
}

// bindJSON decodes the request body only, path params never leak into patches
func bindJSON(c echo.Context, v interface{}) error {
	if c.Request().Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(c.Request().Body).Decode(v)
}

func invalid(c echo.Context, err error) error {
	return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Unable to parse request", err.Error())
}

func originOf(c echo.Context) broadcast.Origin {
	return broadcast.Origin{
		Client: c.Request().Header.Get(headerClientID),
		Ref:    c.Request().Header.Get(headerClientRef),
	}
}

// publish emits the event of a completed mutation. The mutation already
// succeeded, so a publish failure is only logged.
func (a *API) publish(c echo.Context, kind broadcast.Kind, payload interface{}) {
	if _, err := a.Broadcaster.Publish(kind, payload, originOf(c)); err != nil {
		zap.L().Error("adminapi: publish failed", zap.String("type", string(kind)), zap.Error(err))
	}
}
