package openaicompat

import (
	"encoding/json"

	"github.com/rpay/cluster-gateway/internal/sse"
	"github.com/rpay/cluster-gateway/internal/translate"
)

// ParseStreamChunk decodes one SSE data payload into a
// translate.OpenAIStreamChunk. Grounded on the teacher's StreamTransform
// (internal/upstream/openaicompat/response.go), generalized from "scan
// lines and peek at usage/tool-call fields with an anonymous struct" to
// "decode into the typed chunk internal/translate.StreamTranslator
// consumes," since this gateway re-emits a translated Anthropic event
// stream rather than passing the OpenAI stream through unchanged.
func ParseStreamChunk(data string) (*translate.OpenAIStreamChunk, error) {
	var chunk translate.OpenAIStreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// IsDone reports whether an SSE data payload is the stream-terminating
// sentinel.
func IsDone(data string) bool {
	return sse.IsDone(data)
}
