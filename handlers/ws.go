// handlers/ws.go
package handlers

import (
	"deckhub/middleware"
	"deckhub/services/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterWebSocket mounts GET /ws. The client authenticates with the same
// token as the REST API and then only receives toasts.
func RegisterWebSocket(app fiber.Router, auth fiber.Handler, hub *notify.Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", auth, func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals("wsUserId", userID)
		return c.Next()
	}, websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("wsUserId").(string)
		hub.Serve(userID, conn)
	}))
}
