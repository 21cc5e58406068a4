package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"fluidcraft.ai/internal/protocol"
	"fluidcraft.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. A slow client hits the write deadline and is
		// evicted; the session stays resumable by token.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				continue
			}

			ack, replayed := s.ackForAct(sessionID, act)
			writeJSON(conn, ack)
			if replayed {
				continue
			}
			s.world.Inbox() <- world.ActionEnvelope{SessionID: sessionID, Act: act}
		}

		// Cleanup.
		s.world.Leave() <- sessionID
	}
}

// ackForAct answers ACT batches immediately. A repeated act_id returns the
// remembered ACK without re-applying the batch.
func (s *Server) ackForAct(sessionID string, act protocol.ActMsg) (protocol.AckMsg, bool) {
	proposed := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          act.ActID,
		Accepted:        true,
		ServerTick:      s.world.CurrentTick(),
		WorldID:         s.world.Config().ID,
	}
	if act.ActID == "" {
		return proposed, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ack, replayed, err := s.world.RequestCheckOrRememberActAck(ctx, sessionID, s.world.Config().ID, act.ActID, proposed)
	if err != nil {
		return proposed, false
	}
	return ack, replayed
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		writeJSON(conn, protocol.ErrorMsg{
			Type:            protocol.TypeError,
			ProtocolVersion: protocol.Version,
			Code:            protocol.ErrVersion,
			Message:         "unsupported protocol_version",
		})
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	// The world drops stale OBS frames rather than queueing them, so a small
	// buffer is enough for any client.
	out = make(chan []byte, 8)

	// Optional: resume an existing session (reconnect).
	resumeToken := strings.TrimSpace(hello.ResumeToken)

	var resp world.JoinResponse
	if resumeToken != "" {
		respCh := make(chan world.JoinResponse, 1)
		s.world.Attach() <- world.AttachRequest{
			ResumeToken: resumeToken,
			DeltaVoxels: hello.Capabilities.DeltaVoxels,
			Out:         out,
			Resp:        respCh,
		}
		resp = <-respCh
	}
	if resp.Welcome.SessionID == "" {
		// Fresh join.
		respCh := make(chan world.JoinResponse, 1)
		s.world.Join() <- world.JoinRequest{
			Name:        hello.Name,
			DeltaVoxels: hello.Capabilities.DeltaVoxels,
			ObsRadius:   hello.Capabilities.ObsRadius,
			Out:         out,
			Resp:        respCh,
		}
		resp = <-respCh
	}

	// Send welcome + catalogs immediately.
	if !writeJSON(conn, resp.Welcome) {
		return "", nil
	}
	for _, c := range resp.Catalogs {
		if !writeJSON(conn, c) {
			return "", nil
		}
	}

	return resp.Welcome.SessionID, out
}

func writeJSON(conn *websocket.Conn, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}
