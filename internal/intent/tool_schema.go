package intent

import (
	"encoding/json"

	"github.com/rpay/cluster-gateway/internal/translate"
)

// WebSearchToolName is the tool name injected into a translated request
// when Classifier decides the query needs it.
const WebSearchToolName = "web_search"

// webSearchSchema is a minimal JSON Schema describing the single "query"
// parameter, grounded on the teacher's executeWebSearch
// (internal/tools/executor.go) which reads call.Input["query"]. The gateway
// only advertises this tool; it never executes a search itself (spec §4.9).
var webSearchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "The search query to look up on the web."
		}
	},
	"required": ["query"]
}`)

// WebSearchTool returns the Anthropic-shaped tool definition to append to a
// request's Tools list when Classify reports NeedsSearch.
func WebSearchTool() translate.AnthropicTool {
	return translate.AnthropicTool{
		Name:        WebSearchToolName,
		Description: "Search the web for current information not available in the model's training data.",
		InputSchema: webSearchSchema,
	}
}
