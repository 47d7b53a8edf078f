package gatewayhttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rpay/cluster-gateway/internal/translate"
)

// sessionHeader is the session-stickiness carrier (spec §6 "Custom request
// header X-Session-Id (optional) propagates session stickiness").
const sessionHeader = "X-Session-Id"

// sessionIDFor prefers the transport-level header and falls back to the
// request body's metadata.user_id, the equivalent some Anthropic clients
// send instead.
func sessionIDFor(r *http.Request, req *translate.AnthropicRequest) string {
	if id := r.Header.Get(sessionHeader); id != "" {
		return id
	}
	if req.Metadata != nil {
		return req.Metadata.UserID
	}
	return ""
}

// hasTool reports whether tools already contains one named name, so the
// intent classifier doesn't duplicate a tool the caller already declared.
func hasTool(tools []translate.AnthropicTool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// lastUserText extracts the plain text of the most recent user turn, the
// input the intent classifier reasons over (spec §4.9 classifies "the
// latest user message").
func lastUserText(req *translate.AnthropicRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role != "user" {
			continue
		}
		return extractText(m.Content)
	}
	return ""
}

func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	var blocks []translate.AnthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(b.Text)
	}
	return sb.String()
}
