package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"terrasculpt/internal/protocol"
	"terrasculpt/internal/sim/editor"
)

// outQueue bounds the per-client send queue. A full grid resync is a single
// message, so a small queue is enough.
const outQueue = 64

type Server struct {
	session *editor.Session
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(s *editor.Session, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		session: s,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
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

		ctx, cancel := context.WithCancel(r.Context())
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
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeInput {
				s.reject(out, protocol.ErrProtoBadRequest, "expected INPUT")
				continue
			}
			if err := protocol.Validate(protocol.TypeInput, msg); err != nil {
				s.reject(out, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			var in protocol.InputMsg
			if err := json.Unmarshal(msg, &in); err != nil {
				s.reject(out, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			select {
			case s.session.Inbox() <- editor.InputEnvelope{SessionID: sessionID, Input: in}:
			case <-ctx.Done():
			}
		}

		// Cleanup.
		s.session.Leave() <- sessionID
		s.log.Printf("ws: session %s disconnected", sessionID)
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
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		closeWith(conn, "bad HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	hello.ClientName = strings.TrimSpace(hello.ClientName)
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	out = make(chan []byte, outQueue)
	respCh := make(chan editor.JoinResponse, 1)
	s.session.Join() <- editor.JoinRequest{Name: hello.ClientName, Out: out, Resp: respCh}
	resp := <-respCh
	if resp.Err != nil {
		_ = writeJSON(conn, resp.Err)
		closeWith(conn, resp.Err.Code)
		return "", nil
	}

	// WELCOME goes out before anything the session queued on out.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.session.Leave() <- resp.SessionID
		return "", nil
	}
	s.log.Printf("ws: session %s connected (%s)", resp.SessionID, hello.ClientName)
	return resp.SessionID, out
}

func (s *Server) reject(out chan []byte, code, msg string) {
	b, err := json.Marshal(protocol.NewError(code, msg))
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
