package handler

import (
	"go-taskboard/internal/middleware"
	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	wsScopeKey   = "ws_scope"
	wsHidePIIKey = "ws_hide_pii"
)

// WSUpgrade authenticates the ?token= query parameter and pins the client's
// task_instances read scope before the connection is upgraded.
func WSUpgrade(userRepo repository.UserRepository, secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		principal, err := middleware.Authenticate(userRepo, secret, c.Query("token"), log)
		if err != nil {
			return err
		}
		scope := rbac.ScopeFor(principal, model.ResTaskInstances, model.ActRead)
		if !scope.Allowed {
			return fiber.ErrForbidden
		}
		c.Locals(wsScopeKey, scope)
		c.Locals(wsHidePIIKey, principal.ExecutiveHidePII)
		return c.Next()
	}
}

// WSConnect registers the connection with the hub until the peer goes away.
func WSConnect(hub *ws.Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		scope, _ := c.Locals(wsScopeKey).(rbac.Scope)
		hidePII, _ := c.Locals(wsHidePIIKey).(bool)
		client := &ws.Client{Conn: c, Scope: scope, HidePII: hidePII}
		hub.Register(client)
		defer hub.Unregister(client)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	})
}
