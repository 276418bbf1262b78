package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	Grid            GridParams `json:"grid"`
	Tool            ToolState  `json:"tool"`
	TickRateHz      int        `json:"tick_rate_hz"`
}

type GridParams struct {
	Dimension   int     `json:"dimension"`
	CellSize    float64 `json:"cell_size"`
	HeightScale float64 `json:"height_scale"`
	TileSpan    int     `json:"tile_span"`
}

type ToolState struct {
	Mode      string  `json:"mode"`
	BrushSize float64 `json:"brush_size"`
	Strength  float64 `json:"strength"`
	Free      bool    `json:"free"`
}

// Input events.
const (
	InputPress     = "PRESS"
	InputRelease   = "RELEASE"
	InputCursor    = "CURSOR"
	InputEndStroke = "END_STROKE"
	InputUndo      = "UNDO"
	InputAbort     = "ABORT"
	InputMode      = "MODE"
	InputBrushSize = "BRUSH_SIZE"
	InputStrength  = "STRENGTH"
)

// Buttons.
const (
	ButtonPrimary   = "PRIMARY"
	ButtonSecondary = "SECONDARY"
)

// INPUT (client -> server). Pos is a resolved world-space hit point; a CURSOR
// event without Pos means the pointer left the terrain.
type InputMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Event           string      `json:"event"`
	Button          string      `json:"button,omitempty"`
	Pos             *[3]float64 `json:"pos,omitempty"`
	Mode            string      `json:"mode,omitempty"`
	Steps           int         `json:"steps,omitempty"`
}

// TILES (server -> client): changed height rectangles, inclusive bounds.
type TilesMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Full            bool   `json:"full,omitempty"`
	Tiles           []Tile `json:"tiles"`
}

type Tile struct {
	X0 int `json:"x0"`
	Z0 int `json:"z0"`
	X1 int `json:"x1"`
	Z1 int `json:"z1"`
	// Heights is the row-major sample block; Encoding names its run-length
	// form (see sim/encoding).
	Encoding string `json:"encoding"`
	Heights  string `json:"heights"`
}

// STATUS (server -> client)
type StatusMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Mode            string  `json:"mode"`
	BrushSize       float64 `json:"brush_size"`
	Strength        float64 `json:"strength"`
	StrokeActive    bool    `json:"stroke_active"`
	StrokeCost      int64   `json:"stroke_cost"`
	UndoDepth       int     `json:"undo_depth"`
	Funds           int64   `json:"funds"`
	Free            bool    `json:"free"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
