package handlers

import (
	"context"
	"encoding/json"
	"log"

	"game-match-system/services"
	"game-match-system/ws"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	fiberws "github.com/gofiber/websocket/v2"
)

// gameFrame is an inbound client frame. Data stays raw so relay events
// (move, score) can be forwarded to the opponent byte for byte.
type gameFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type queueRequest struct {
	Mode string `json:"mode"`
}

type roomRequest struct {
	Room string `json:"room"`
}

type scoreRequest struct {
	Room  string `json:"room"`
	Score string `json:"score"`
	State string `json:"state"`
}

// SetupGameRoutes mounts the game websocket endpoint. The upgrade requires a
// user identity already attached by the auth middleware; sockets without one
// never reach the coordinator.
func SetupGameRoutes(app *fiber.App, coordinator *services.MatchCoordinator, registry *ws.Registry) {
	app.Use("/socket/game", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/socket/game", fiberws.New(func(conn *fiberws.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		if userID == "" {
			log.Printf("🚫 Rejected unauthenticated game socket from %s", conn.RemoteAddr())
			_ = conn.Close()
			return
		}

		client := ws.NewClient(uuid.NewString(), userID, conn)
		registry.Add(client)
		log.Printf("Client %s connected to game socket (user %s)", client.ID, userID)

		defer func() {
			coordinator.HandleDisconnect(context.Background(), client.ID)
			registry.Remove(client.ID)
			log.Printf("Client %s disconnected from game socket", client.ID)
		}()

		for {
			var frame gameFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			dispatch(client, coordinator, frame)
		}
	}))
}

func dispatch(client *ws.Client, coordinator *services.MatchCoordinator, frame gameFrame) {
	ctx := context.Background()

	switch frame.Event {
	case "queue":
		var req queueRequest
		_ = json.Unmarshal(frame.Data, &req)
		// no ack: the matched push is the client's signal
		coordinator.HandleQueue(ctx, client.ID, client.UserID, req.Mode)

	case "leave":
		ack(client, frame.Event, coordinator.HandleLeave(ctx, client.ID, client.UserID))

	case "matched":
		var req roomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Room == "" {
			ack(client, frame.Event, services.Result{Status: services.StatusError, Message: "room required"})
			return
		}
		ack(client, frame.Event, coordinator.HandleMatched(ctx, client.ID, client.UserID, req.Room))

	case "connected":
		var req roomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Room == "" {
			ack(client, frame.Event, services.Result{Status: services.StatusError, Message: "room required"})
			return
		}
		ack(client, frame.Event, coordinator.HandleConnected(ctx, client.ID, client.UserID, req.Room))

	case "ready":
		var req roomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Room == "" {
			ack(client, frame.Event, services.Result{Status: services.StatusError, Message: "room required"})
			return
		}
		ack(client, frame.Event, coordinator.HandleReady(ctx, client.ID, req.Room))

	case "move":
		var req roomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Room == "" {
			ack(client, frame.Event, services.Result{Status: services.StatusError, Message: "room required"})
			return
		}
		ack(client, frame.Event, coordinator.HandleMove(ctx, client.ID, req.Room, frame.Data))

	case "score":
		var req scoreRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Room == "" {
			ack(client, frame.Event, services.Result{Status: services.StatusError, Message: "room required"})
			return
		}
		ack(client, frame.Event, coordinator.HandleScore(ctx, client.ID, client.UserID, req.Room, req.Score, req.State, frame.Data))

	default:
		ack(client, frame.Event, services.Result{Status: services.StatusError, Message: "unknown event"})
	}
}

func ack(client *ws.Client, event string, res services.Result) {
	if err := client.WriteEvent(event+":ack", res); err != nil {
		log.Printf("Failed to ack %s to %s: %v", event, client.ID, err)
	}
}
