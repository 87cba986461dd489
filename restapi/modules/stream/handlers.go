// Package stream implements the WebSocket endpoint pushing live
// vulnerability and alert updates.
package stream

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/notify"
)

const (
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

// Upgrade gates the stream route to WebSocket upgrade requests.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the WebSocket connection handler. Clients may pass
// ?min_severity=HIGH to filter the vulnerability stream; alerts are always
// delivered.
func Handler(hub *notify.Hub, logger *zap.SugaredLogger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		minSeverity := model.Severity(conn.Query("min_severity"))
		if minSeverity != "" && !minSeverity.Valid() {
			minSeverity = ""
		}

		client := hub.Register(uuid.New().String(), minSeverity)
		defer hub.Unregister(client.ID)

		done := make(chan struct{})
		go func() {
			defer close(done)
			// Reads only service close and control frames.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-client.Send:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					logger.Debugf("websocket write to %s failed: %v", client.ID, err)
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}
