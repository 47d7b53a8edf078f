package jsonstream

import (
	"fmt"
	"time"

	"github.com/rpay/cluster-gateway/internal/gwerror"
)

type scanMode int

const (
	modeValue scanMode = iota // expecting a value, or structural punctuation
	modeString
	modeStringEscape
	modeStringUnicode
	modeNumber
	modeLiteral
)

// frame is one open container on the parse stack.
type frame struct {
	isArray bool
	obj     map[string]interface{}
	arr     []interface{}

	pendingKey  string
	haveKey     bool
	expectColon bool
	expectValue bool // true right after '{', '[', ':' or ','
}

// Parser is a single independent streaming JSON decode. It is not safe for
// concurrent use (spec §4.8 "single-threaded per request").
type Parser struct {
	cfg Config

	firstFeedAt   time.Time
	totalConsumed int

	stack []*frame
	root  interface{}
	rootSet bool

	mode scanMode

	strBuf     []rune
	unicodeBuf []rune
	numBuf     []byte
	litBuf     []byte

	toolInfo ToolInfo
	complete bool
	fatal    error
}

// NewParser creates a parser with cfg (DefaultConfig() if zero-valued).
func NewParser(cfg Config) *Parser {
	if cfg.BufferCap <= 0 {
		cfg.BufferCap = DefaultConfig().BufferCap
	}
	if cfg.NestingCap <= 0 {
		cfg.NestingCap = DefaultConfig().NestingCap
	}
	if cfg.WallClock <= 0 {
		cfg.WallClock = DefaultConfig().WallClock
	}
	return &Parser{cfg: cfg}
}

// Reset returns the parser to its initial state (spec §4.7 "Malformed
// input leaves the parser in a resettable state").
func (p *Parser) Reset() {
	p.firstFeedAt = time.Time{}
	p.totalConsumed = 0
	p.stack = nil
	p.root = nil
	p.rootSet = false
	p.mode = modeValue
	p.strBuf = nil
	p.unicodeBuf = nil
	p.numBuf = nil
	p.litBuf = nil
	p.toolInfo = ToolInfo{}
	p.complete = false
	p.fatal = nil
}

// Feed advances the parser by chunk and returns the delta result. Once an
// error is returned the parser is fatally broken; callers must Reset before
// feeding further bytes (spec §4.7).
func (p *Parser) Feed(chunk []byte) (DeltaResult, error) {
	if p.fatal != nil {
		return DeltaResult{}, p.fatal
	}

	start := p.totalConsumed
	if p.firstFeedAt.IsZero() {
		p.firstFeedAt = time.Now()
	} else if time.Since(p.firstFeedAt) > p.cfg.WallClock {
		p.fatal = gwerror.New(gwerror.KindParserTimeout, "", "streaming JSON parse exceeded wall-clock cap", nil)
		return DeltaResult{}, p.fatal
	}

	if p.totalConsumed+len(chunk) > p.cfg.BufferCap {
		p.fatal = gwerror.New(gwerror.KindParserBufferOverflow, "", "streaming JSON input exceeded buffer cap", nil)
		return DeltaResult{}, p.fatal
	}

	for _, b := range chunk {
		if err := p.step(b); err != nil {
			p.fatal = err
			return DeltaResult{}, err
		}
	}
	p.totalConsumed += len(chunk)

	return DeltaResult{
		Object:     p.view(),
		IsComplete: p.complete,
		Delta:      string(chunk),
		DeltaStart: start,
		DeltaEnd:   p.totalConsumed,
		ToolInfo:   p.toolInfo,
	}, nil
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func (p *Parser) step(b byte) error {
	switch p.mode {
	case modeString:
		return p.stepString(b)
	case modeStringEscape:
		return p.stepStringEscape(b)
	case modeStringUnicode:
		return p.stepStringUnicode(b)
	case modeNumber:
		return p.stepNumber(b)
	case modeLiteral:
		return p.stepLiteral(b)
	default:
		return p.stepValue(b)
	}
}

func (p *Parser) stepValue(b byte) error {
	if isSpace(b) {
		return nil
	}

	top := p.top()

	switch b {
	case '{':
		return p.openContainer(false)
	case '[':
		return p.openContainer(true)
	case '}':
		return p.closeContainer(false)
	case ']':
		return p.closeContainer(true)
	case '"':
		p.mode = modeString
		p.strBuf = p.strBuf[:0]
		return nil
	case ':':
		if top == nil || top.isArray || !top.haveKey || !top.expectColon {
			return protocolErr("unexpected ':'")
		}
		top.expectColon = false
		top.expectValue = true
		return nil
	case ',':
		if top == nil {
			return protocolErr("unexpected ','")
		}
		if top.isArray {
			top.expectValue = true
		} else {
			if top.haveKey || top.expectColon || top.expectValue {
				return protocolErr("unexpected ',' in object")
			}
			top.expectValue = false
		}
		return nil
	case 't', 'f', 'n':
		p.mode = modeLiteral
		p.litBuf = p.litBuf[:0]
		p.litBuf = append(p.litBuf, b)
		return nil
	default:
		if b == '-' || (b >= '0' && b <= '9') {
			p.mode = modeNumber
			p.numBuf = p.numBuf[:0]
			p.numBuf = append(p.numBuf, b)
			return nil
		}
		return protocolErr(fmt.Sprintf("unexpected byte %q", b))
	}
}

func (p *Parser) top() *frame {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *Parser) openContainer(isArray bool) error {
	if len(p.stack) >= p.cfg.NestingCap {
		return gwerror.New(gwerror.KindParserNestingExceeded, "", "streaming JSON nesting exceeded cap", nil)
	}
	f := &frame{isArray: isArray, expectValue: true}
	if isArray {
		f.arr = []interface{}{}
	} else {
		f.obj = map[string]interface{}{}
	}
	p.stack = append(p.stack, f)
	return nil
}

func (p *Parser) closeContainer(isArray bool) error {
	top := p.top()
	if top == nil || top.isArray != isArray {
		return protocolErr("mismatched container close")
	}
	if !top.isArray && (top.expectColon || top.expectValue && top.haveKey) {
		return protocolErr("unexpected close of incomplete object")
	}

	var value interface{}
	if top.isArray {
		value = top.arr
	} else {
		value = top.obj
	}

	p.stack = p.stack[:len(p.stack)-1]
	p.attach(value)
	return nil
}

// attach assigns a completed value either to the new parent frame or, if
// the stack is now empty, to the document root.
func (p *Parser) attach(value interface{}) {
	parent := p.top()
	if parent == nil {
		p.root = value
		p.rootSet = true
		p.complete = true
		return
	}
	p.complete = false
	if parent.isArray {
		parent.arr = append(parent.arr, value)
		parent.expectValue = false
	} else {
		if parent.haveKey {
			key := parent.pendingKey
			parent.obj[key] = value
			parent.haveKey = false
			parent.expectValue = false
			p.maybeDetectTool(key, value)
		} else {
			// value is itself a completed key's own container closing at
			// the same position: unreachable in well-formed input.
		}
	}
}

func (p *Parser) maybeDetectTool(key string, value interface{}) {
	if p.toolInfo.Detected {
		return
	}
	if key != "name" {
		return
	}
	if s, ok := value.(string); ok && s != "" {
		p.toolInfo = ToolInfo{Name: s, Detected: true}
	}
}

func (p *Parser) stepString(b byte) error {
	switch b {
	case '"':
		p.mode = modeValue
		return p.commitValue(string(p.strBuf))
	case '\\':
		p.mode = modeStringEscape
		return nil
	default:
		p.strBuf = append(p.strBuf, rune(b))
		return nil
	}
}

func (p *Parser) stepStringEscape(b byte) error {
	switch b {
	case '"', '\\', '/':
		p.strBuf = append(p.strBuf, rune(b))
	case 'n':
		p.strBuf = append(p.strBuf, '\n')
	case 't':
		p.strBuf = append(p.strBuf, '\t')
	case 'r':
		p.strBuf = append(p.strBuf, '\r')
	case 'b':
		p.strBuf = append(p.strBuf, '\b')
	case 'f':
		p.strBuf = append(p.strBuf, '\f')
	case 'u':
		p.mode = modeStringUnicode
		p.unicodeBuf = p.unicodeBuf[:0]
		return nil
	default:
		return protocolErr("invalid escape sequence")
	}
	p.mode = modeString
	return nil
}

func (p *Parser) stepStringUnicode(b byte) error {
	p.unicodeBuf = append(p.unicodeBuf, rune(b))
	if len(p.unicodeBuf) < 4 {
		return nil
	}
	var code rune
	for _, c := range p.unicodeBuf {
		code <<= 4
		switch {
		case c >= '0' && c <= '9':
			code |= c - '0'
		case c >= 'a' && c <= 'f':
			code |= c - 'a' + 10
		case c >= 'A' && c <= 'F':
			code |= c - 'A' + 10
		default:
			return protocolErr("invalid unicode escape")
		}
	}
	p.strBuf = append(p.strBuf, code)
	p.mode = modeString
	return nil
}

func (p *Parser) stepNumber(b byte) error {
	if (b >= '0' && b <= '9') || b == '.' || b == '-' || b == '+' || b == 'e' || b == 'E' {
		p.numBuf = append(p.numBuf, b)
		return nil
	}
	if err := p.finishNumber(); err != nil {
		return err
	}
	p.mode = modeValue
	return p.stepValue(b)
}

func (p *Parser) finishNumber() error {
	var f float64
	if _, err := fmt.Sscanf(string(p.numBuf), "%g", &f); err != nil {
		return protocolErr("invalid number literal")
	}
	return p.commitValue(f)
}

var literalWords = []string{"true", "false", "null"}

func (p *Parser) stepLiteral(b byte) error {
	if b >= 'a' && b <= 'z' {
		p.litBuf = append(p.litBuf, b)
		word := string(p.litBuf)
		if word == "true" || word == "false" || word == "null" {
			p.mode = modeValue
			return p.commitValue(literalValueOf(word))
		}
		if !isPrefixOfAny(word, literalWords) {
			return protocolErr("invalid literal")
		}
		return nil
	}
	return protocolErr("invalid literal")
}

func literalValueOf(word string) interface{} {
	switch word {
	case "true":
		return true
	case "false":
		return false
	default:
		return nil
	}
}

func isPrefixOfAny(word string, candidates []string) bool {
	for _, c := range candidates {
		if len(word) <= len(c) && c[:len(word)] == word {
			return true
		}
	}
	return false
}

// commitValue assigns a freshly parsed scalar to the current context: a
// pending object key, an array slot, or (if it's a bare top-level scalar)
// the document root.
func (p *Parser) commitValue(v interface{}) error {
	top := p.top()
	if top == nil {
		p.root = v
		p.rootSet = true
		p.complete = true
		return nil
	}

	if top.isArray {
		if !top.expectValue && len(top.arr) > 0 {
			return protocolErr("unexpected value in array")
		}
		top.arr = append(top.arr, v)
		top.expectValue = false
		return nil
	}

	if !top.haveKey {
		s, ok := v.(string)
		if !ok {
			return protocolErr("object key must be a string")
		}
		top.pendingKey = s
		top.haveKey = true
		top.expectColon = true
		return nil
	}

	key := top.pendingKey
	top.obj[key] = v
	top.haveKey = false
	top.expectValue = false
	p.maybeDetectTool(key, v)
	return nil
}

// view returns the sanitized snapshot of the document built so far,
// including the currently-open top-of-stack containers (spec §4.7
// "object" tracks a partial value tree).
func (p *Parser) view() interface{} {
	if len(p.stack) == 0 {
		if p.rootSet {
			return sanitize(p.root)
		}
		return nil
	}
	// The bottom-most open frame is the partial root when nothing has
	// closed back down to depth zero yet.
	bottom := p.stack[0]
	if bottom.isArray {
		return sanitize(bottom.arr)
	}
	return sanitize(bottom.obj)
}

// sanitize replaces control characters inside strings with spaces for the
// exposed object view, leaving the raw delta untouched (spec §4.7).
func sanitize(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return sanitizeString(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = sanitize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = sanitize(val)
		}
		return out
	default:
		return v
	}
}

func sanitizeString(s string) string {
	out := []rune(s)
	changed := false
	for i, r := range out {
		if r < 0x20 {
			out[i] = ' '
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(out)
}

func protocolErr(msg string) error {
	return gwerror.New(gwerror.KindProtocolTranslation, "", msg, nil)
}
