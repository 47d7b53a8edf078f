package translate

import "encoding/json"

// RewriteSchema applies the OpenAI-dialect rewrite rules (spec §4.8.1)
// recursively and returns the rewritten schema. The input/output are both
// generic JSON trees (map[string]interface{} / []interface{} / scalars) so
// the rewriter doesn't need a dedicated schema struct for every JSON Schema
// keyword.
func RewriteSchema(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return raw // malformed schema passes through untouched
	}
	rewritten := rewriteNode(tree)
	out, err := json.Marshal(rewritten)
	if err != nil {
		return raw
	}
	return out
}

func rewriteNode(node interface{}) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		return rewriteObject(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = rewriteNode(e)
		}
		return out
	default:
		return v
	}
}

func rewriteObject(m map[string]interface{}) map[string]interface{} {
	if branches, ok := firstOf(m, "oneOf", "anyOf"); ok {
		if len(branches) > 0 {
			merged := rewriteNode(branches[0])
			if mm, ok := merged.(map[string]interface{}); ok {
				return mm
			}
		}
		delete(m, "oneOf")
		delete(m, "anyOf")
	}

	if all, ok := m["allOf"].(([]interface{})); ok {
		merged := map[string]interface{}{}
		var required []interface{}
		for _, branch := range all {
			bm, ok := rewriteNode(branch).(map[string]interface{})
			if !ok {
				continue
			}
			if props, ok := bm["properties"].(map[string]interface{}); ok {
				dst, _ := merged["properties"].(map[string]interface{})
				if dst == nil {
					dst = map[string]interface{}{}
				}
				for k, v := range props {
					dst[k] = v
				}
				merged["properties"] = dst
			}
			if req, ok := bm["required"].([]interface{}); ok {
				required = append(required, req...)
			}
			for k, v := range bm {
				if k == "properties" || k == "required" {
					continue
				}
				if _, exists := merged[k]; !exists {
					merged[k] = v
				}
			}
		}
		if len(required) > 0 {
			merged["required"] = dedupeStrings(required)
		}
		delete(m, "allOf")
		for k, v := range merged {
			m[k] = v
		}
	}

	if types, ok := m["type"].([]interface{}); ok {
		collapsed := collapseTypeArray(types)
		if collapsed != nil {
			m["type"] = collapsed
		} else {
			delete(m, "type")
		}
	}

	if fmtVal, ok := m["format"].(string); ok && fmtVal == "uri" {
		delete(m, "format")
	}

	if t, ok := m["type"].(string); ok && t == "object" {
		if _, has := m["additionalProperties"]; !has {
			m["additionalProperties"] = false
		}
	}

	for k, v := range m {
		switch k {
		case "oneOf", "anyOf", "allOf", "type", "format", "additionalProperties":
			continue
		default:
			m[k] = rewriteNode(v)
		}
	}
	return m
}

func firstOf(m map[string]interface{}, keys ...string) ([]interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k].([]interface{}); ok {
			return v, true
		}
	}
	return nil, false
}

// collapseTypeArray picks the first non-null entry, per spec §4.8.1
// "type: [T, U, ...] -> collapse to the first entry (null dropped when
// possible)".
func collapseTypeArray(types []interface{}) interface{} {
	for _, t := range types {
		if s, ok := t.(string); ok && s != "null" {
			return s
		}
	}
	if len(types) > 0 {
		return types[0]
	}
	return nil
}

func dedupeStrings(items []interface{}) []interface{} {
	seen := make(map[string]struct{}, len(items))
	out := make([]interface{}, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
