package intent

import (
	"encoding/json"
	"testing"
)

func TestWebSearchToolSchemaRequiresQuery(t *testing.T) {
	tool := WebSearchTool()
	if tool.Name != WebSearchToolName {
		t.Fatalf("expected name %q, got %q", WebSearchToolName, tool.Name)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a properties object, got %v", schema["properties"])
	}
	if _, ok := props["query"]; !ok {
		t.Fatalf("expected a query property")
	}
	required, ok := schema["required"].([]interface{})
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Fatalf("expected query to be required, got %v", schema["required"])
	}
}
