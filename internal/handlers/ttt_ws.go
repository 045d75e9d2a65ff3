package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arcade/internal/auth"
	"github.com/jason-s-yu/arcade/internal/middleware"
	"github.com/jason-s-yu/arcade/internal/ttt"
	"github.com/sirupsen/logrus"
)

const tttSubprotocol = "ttt"

// tttCommand is one client to server frame.
type tttCommand struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	RoomID string `json:"room_id,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// TTTWSHandler upgrades to the tic-tac-toe socket. A session identity fixes the
// player's name; guests pick one in find_match.
func TTTWSHandler(logger *logrus.Logger, mm *ttt.Matchmaker, origins []string) http.HandlerFunc {
	patterns := originPatterns(origins)
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{tttSubprotocol},
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != tttSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the ttt subprotocol")
			return
		}

		name := "Guest"
		id, authed := auth.IdentityFrom(r.Context())
		if authed {
			name = id.Username
		}
		player := ttt.NewPlayer(name)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path, player.ID.String())
		go tttWritePump(ctx, cancel, c, player, logger)

		err = tttReadLoop(ctx, c, mm, player, authed, logger)
		mm.Leave(player)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, player.ID.String(), err)

		if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
			c.Close(websocket.StatusInternalError, "read error")
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// tttReadLoop handles frames until the connection closes. The returned error
// is the read error that ended it.
func tttReadLoop(ctx context.Context, c *websocket.Conn, mm *ttt.Matchmaker, p *ttt.Player, authed bool, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			p.SendError("expected a text frame")
			continue
		}

		var cmd tttCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			p.SendError("Invalid JSON format")
			continue
		}
		if err := handleTTTCommand(ctx, mm, p, cmd, authed); err != nil {
			logger.WithFields(logrus.Fields{"player": p.ID, "type": cmd.Type}).Debugf("ttt: rejected: %v", err)
			p.SendError(err.Error())
		}
	}
}

func handleTTTCommand(ctx context.Context, mm *ttt.Matchmaker, p *ttt.Player, cmd tttCommand, authed bool) error {
	switch cmd.Type {
	case "find_match":
		name := ""
		if !authed {
			name = strings.TrimSpace(cmd.Name)
		}
		return mm.FindMatch(p, name)
	case "make_move":
		roomID, err := uuid.Parse(cmd.RoomID)
		if err != nil {
			return ttt.ErrUnknownRoom
		}
		if cmd.Index == nil {
			return ttt.ErrBadCell
		}
		return mm.Move(ctx, p, roomID, *cmd.Index)
	case "restart":
		roomID, err := uuid.Parse(cmd.RoomID)
		if err != nil {
			return ttt.ErrUnknownRoom
		}
		return mm.Restart(p, roomID)
	case "ping":
		p.Send(ttt.Event{Type: ttt.EventPong})
		return nil
	}
	return errors.New("unknown message type: " + cmd.Type)
}

// tttWritePump drains the player's OutChan onto the socket and pings it
// periodically. A failed write cancels the connection.
func tttWritePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, p *ttt.Player, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("ttt: failed to marshal %q for player %v: %v", ev.Type, p.ID, err)
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			writeCancel()
			if err != nil {
				logger.Warnf("ttt: failed to write to websocket for player %v: %v", p.ID, err)
				if errors.Is(err, context.DeadlineExceeded) {
					c.Close(SlowConsumerError, "write timeout")
				}
				cancel()
				return
			}
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			pingCancel()
			if err != nil {
				logger.Debugf("ttt: ping failed for player %v: %v", p.ID, err)
				cancel()
				return
			}
		}
	}
}

// originPatterns converts configured origins to the host patterns the
// websocket library matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
