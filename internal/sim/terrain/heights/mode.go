package heights

import "strings"

type Mode int

const (
	Shift Mode = iota
	Level
	Soften
	Slope

	ModeCount = 4
)

var modeNames = [ModeCount]string{
	Shift:  "SHIFT",
	Level:  "LEVEL",
	Soften: "SOFTEN",
	Slope:  "SLOPE",
}

func (m Mode) Valid() bool { return m >= 0 && int(m) < ModeCount }

func (m Mode) String() string {
	if !m.Valid() {
		return "UNKNOWN"
	}
	return modeNames[m]
}

func ParseMode(s string) (Mode, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return 0, false
}

// Modes lists every mode in declaration order.
func Modes() []Mode {
	out := make([]Mode, ModeCount)
	for i := range out {
		out[i] = Mode(i)
	}
	return out
}
