// Package jsonstream implements the incremental JSON parser (spec §4.7):
// a character-driven tokenizer plus a parse stack that lets a tool-call's
// `function.arguments` be assembled, and its name detected, before the
// JSON value is complete. This is NOT a repair-then-reparse approach —
// every byte advances a persistent stack, never a retry over the whole
// buffer — which is the one place this module deliberately does not
// follow digitallysavvy-go-ai's pkg/jsonparser (FixJSON/ParsePartialJSON),
// since repair-then-reparse cannot produce stable deltas or early
// detection. The DeltaResult naming is kept in that package's
// idiom; the algorithm underneath is new.
package jsonstream

import "time"

// Config bounds the parser's resource use (spec §4.7 "Safety").
type Config struct {
	BufferCap  int           // default 1 MiB
	NestingCap int           // default 64
	WallClock  time.Duration // default 30s
}

// DefaultConfig mirrors the spec defaults.
func DefaultConfig() Config {
	return Config{
		BufferCap:  1 << 20,
		NestingCap: 64,
		WallClock:  30 * time.Second,
	}
}

// ToolInfo reports early detection of a function-call object's name
// (spec §4.7 "Early tool detection").
type ToolInfo struct {
	Name     string
	Detected bool
}

// DeltaResult is returned by every call to Feed (spec §4.7).
type DeltaResult struct {
	Object     interface{}
	IsComplete bool
	Delta      string
	DeltaStart int
	DeltaEnd   int
	ToolInfo   ToolInfo
}
