package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopsync/internal/webserver"
)

// registerRealtimeRoutes serves the websocket channel at /ws?client=<token>
func (a *API) registerRealtimeRoutes(srv *webserver.Server) {
	if a.Hub == nil {
		return
	}
	srv.GET("/ws", func(c echo.Context) error {
		a.Hub.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	srv.ApiGET("/realtime", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"clients": a.Hub.Clients()})
	})
}
