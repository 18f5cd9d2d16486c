package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/world"
)

const outQueue = 32

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
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
		s.log.Printf("session %s connected from %s", sessionID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
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
			if code, text := s.route(sessionID, msg); code != "" {
				queueError(out, code, text)
			}
		}

		// Cleanup.
		s.world.Leave() <- sessionID
		s.log.Printf("session %s disconnected", sessionID)
	}
}

// route forwards one client message to the world and returns an error code
// when the message is rejected.
func (s *Server) route(sessionID string, msg []byte) (code, text string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.ErrProtoBadRequest, "malformed json"
	}
	if base.Type != protocol.TypeAct {
		return protocol.ErrProtoBadRequest, "unexpected message type " + base.Type
	}
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		return protocol.ErrProtoBadRequest, "malformed ACT"
	}
	if act.ProtocolVersion != protocol.Version {
		return protocol.ErrProtoUnsupported, "bad protocol_version"
	}
	select {
	case s.world.Inbox() <- world.ActionEnvelope{SessionID: sessionID, Act: act}:
		return "", ""
	default:
		return protocol.ErrWorldBusy, "world inbox full"
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		rejectAndClose(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		rejectAndClose(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		rejectAndClose(conn, protocol.ErrProtoUnsupported, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, outQueue)
	respCh := make(chan world.JoinResponse, 1)
	select {
	case s.world.Join() <- world.JoinRequest{Name: hello.Name, Out: out, Resp: respCh}:
	case <-time.After(5 * time.Second):
		rejectAndClose(conn, protocol.ErrWorldBusy, "join queue full")
		return "", nil
	}

	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(10 * time.Second):
		rejectAndClose(conn, protocol.ErrWorldBusy, "join timed out")
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.SessionID
		return "", nil
	}
	return resp.Welcome.SessionID, out
}

func errorMsg(code, text string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         text,
	}
}

// queueError hands an ERROR to the writer goroutine. It is dropped when the
// outbox is full.
func queueError(out chan []byte, code, text string) {
	b, err := json.Marshal(errorMsg(code, text))
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func rejectAndClose(conn *websocket.Conn, code, text string) {
	_ = writeJSON(conn, errorMsg(code, text))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
