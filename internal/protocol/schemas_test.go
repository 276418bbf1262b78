package protocol_test

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"testing"

	"terrasculpt/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(msgType, raw string) {
		t.Helper()
		if err := protocol.Validate(msgType, []byte(raw)); err != nil {
			t.Fatalf("validate %s: %v", msgType, err)
		}
	}

	validate(protocol.TypeHello, `{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"sculptor"
	}`)

	validate(protocol.TypeInput, `{
	  "type":"INPUT",
	  "protocol_version":"1.0",
	  "event":"PRESS",
	  "button":"PRIMARY",
	  "pos":[-480.0, 32.0, -480.0]
	}`)
	validate(protocol.TypeInput, `{"type":"INPUT","protocol_version":"1.0","event":"CURSOR"}`)
	validate(protocol.TypeInput, `{"type":"INPUT","protocol_version":"1.0","event":"BRUSH_SIZE","steps":-3}`)
	validate(protocol.TypeInput, `{"type":"INPUT","protocol_version":"1.0","event":"MODE","mode":"SLOPE"}`)
}

func TestSchemas_RejectBadInput(t *testing.T) {
	bad := []string{
		`{"type":"INPUT","protocol_version":"1.0","event":"SMEAR"}`,
		`{"type":"INPUT","protocol_version":"1.0","event":"PRESS","pos":[0,0,0]}`,
		`{"type":"INPUT","protocol_version":"1.0","event":"PRESS","button":"PRIMARY"}`,
		`{"type":"INPUT","protocol_version":"1.0","event":"CURSOR","pos":[0,0]}`,
		`{"type":"INPUT","protocol_version":"1.0","event":"MODE"}`,
		`{"type":"INPUT","protocol_version":"1.0","event":"STRENGTH","steps":1.5}`,
	}
	for _, raw := range bad {
		if err := protocol.Validate(protocol.TypeInput, []byte(raw)); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
	if err := protocol.Validate(protocol.TypeHello, []byte(`{"type":"HELLO","protocol_version":"1.0"}`)); err == nil {
		t.Fatalf("expected HELLO without client_name to be rejected")
	}
}

func TestValidate_DecodesRawBytes(t *testing.T) {
	if err := protocol.Validate(protocol.TypeInput, []byte(`{"type":"INPUT",`)); err == nil {
		t.Fatalf("expected truncated JSON to be rejected")
	}
	// Whole numbers must stay integers through decoding.
	raw := `{"type":"INPUT","protocol_version":"1.0","event":"STRENGTH","steps":-3}`
	if err := protocol.Validate(protocol.TypeInput, []byte(raw)); err != nil {
		t.Fatalf("integer steps rejected: %v", err)
	}
}

func TestSchemas_ServerMessagesConform(t *testing.T) {
	check := func(msgType string, v any) {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := protocol.Validate(msgType, b); err != nil {
			t.Fatalf("%s does not match its schema: %v\n%s", msgType, err, b)
		}
	}

	check(protocol.TypeWelcome, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		TickRateHz:      60,
		Grid:            protocol.GridParams{Dimension: 1081, CellSize: 16, HeightScale: 64, TileSpan: 128},
		Tool:            protocol.ToolState{Mode: "LEVEL", BrushSize: 25, Strength: 0.5},
	})
	check(protocol.TypeTiles, protocol.TilesMsg{
		Type:            protocol.TypeTiles,
		ProtocolVersion: protocol.Version,
		Tick:            3,
		Tiles:           []protocol.Tile{{X0: 0, Z0: 0, X1: 1, Z1: 1, Encoding: "rle", Heights: "AAQ="}},
	})
	check(protocol.TypeStatus, protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            3,
		Mode:            "SHIFT",
		BrushSize:       25,
		Strength:        0.01,
		Funds:           math.MaxInt64,
		Free:            true,
	})
	check(protocol.TypeError, protocol.NewError(protocol.ErrSessionBusy, "another client is editing"))
}

func TestSchemas_CoverEveryMessageType(t *testing.T) {
	got := protocol.SchemaTypes()
	sort.Strings(got)
	want := []string{
		protocol.TypeError,
		protocol.TypeHello,
		protocol.TypeInput,
		protocol.TypeStatus,
		protocol.TypeTiles,
		protocol.TypeWelcome,
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("schema types=%v want %v", got, want)
	}
}
