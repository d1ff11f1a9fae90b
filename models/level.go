package models

import "strings"

// Level is the severity an event was reported with.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// levelColors maps each level to a hex RGB color (no leading '#').
var levelColors = map[Level]string{
	LevelDebug:   "cfd3da",
	LevelInfo:    "2788ce",
	LevelWarning: "f18500",
	LevelError:   "f43f20",
	LevelFatal:   "d20f2a",
}

// Color returns the display color for l. Unknown levels use the error color.
func (l Level) Color() string {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return levelColors[LevelError]
}

// Known reports whether l is one of the five recognised levels.
func (l Level) Known() bool {
	_, ok := levelColors[l]
	return ok
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel normalises SDK-specific level strings. Anything it does not
// recognise is returned lower-cased and left for Color to fall back on.
func ParseLevel(raw string) Level {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "warn":
		return LevelWarning
	case "critical":
		return LevelFatal
	case "":
		return LevelError
	default:
		return Level(s)
	}
}
