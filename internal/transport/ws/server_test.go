package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"terrasculpt/internal/protocol"
	"terrasculpt/internal/sim/economy"
	"terrasculpt/internal/sim/editor"
	"terrasculpt/internal/sim/terrain/grid"
)

func startServer(t *testing.T) string {
	t.Helper()
	ctl, err := editor.New(editor.DefaultConfig(), grid.NewFlat(1024), economy.NewTreasury(economy.Unlimited), nil)
	if err != nil {
		t.Fatalf("editor.New: %v", err)
	}
	sess, err := editor.NewSession(editor.SessionConfig{TickRateHz: 200}, ctl)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sess.Run(ctx) }()

	srv := httptest.NewServer(NewServer(sess, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("bad json: %v", err)
		}
		if m["type"] == want {
			return m
		}
	}
}

func hello(t *testing.T, conn *websocket.Conn, name string) {
	t.Helper()
	msg := `{"type":"HELLO","protocol_version":"` + protocol.Version + `","client_name":"` + name + `"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write HELLO: %v", err)
	}
}

func TestServer_HandshakeAndFullGrid(t *testing.T) {
	url := startServer(t)
	conn := dial(t, url)
	hello(t, conn, "editor")

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WELCOME: %v", err)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(b, &w); err != nil || w.Type != protocol.TypeWelcome {
		t.Fatalf("first message is not WELCOME: %s", b)
	}
	if w.SessionID == "" || w.Grid.Dimension != grid.Dimension || !w.Tool.Free {
		t.Fatalf("welcome=%+v", w)
	}
	if err := protocol.Validate(protocol.TypeWelcome, b); err != nil {
		t.Fatalf("WELCOME does not match schema: %v", err)
	}

	tiles := readType(t, conn, protocol.TypeTiles)
	if tiles["full"] != true {
		t.Fatalf("expected full TILES after join")
	}
}

func TestServer_RejectsBadInput(t *testing.T) {
	url := startServer(t)
	conn := dial(t, url)
	hello(t, conn, "editor")
	readType(t, conn, protocol.TypeWelcome)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"INPUT","protocol_version":"1.0","event":"PRESS"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := readType(t, conn, protocol.TypeError)
	if e["code"] != protocol.ErrProtoBadRequest {
		t.Fatalf("error=%v", e)
	}
}

func TestServer_SecondClientIsBusy(t *testing.T) {
	url := startServer(t)
	first := dial(t, url)
	hello(t, first, "one")
	readType(t, first, protocol.TypeWelcome)

	second := dial(t, url)
	hello(t, second, "two")
	e := readType(t, second, protocol.TypeError)
	if e["code"] != protocol.ErrSessionBusy {
		t.Fatalf("error=%v", e)
	}
}

func TestServer_RequiresHello(t *testing.T) {
	url := startServer(t)
	conn := dial(t, url)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"INPUT","protocol_version":"1.0","event":"UNDO"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
