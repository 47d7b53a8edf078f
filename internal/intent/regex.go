package intent

import "regexp"

// searchPatterns match phrasing that strongly implies the user wants
// current/external information the model can't know from training data.
var searchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(search|google|look up|lookup)\b`),
	regexp.MustCompile(`(?i)\b(latest|current|today'?s|this week'?s|recent)\b.*\b(news|price|version|release|score)\b`),
	regexp.MustCompile(`(?i)\bwhat'?s (happening|going on|new) (in|with)\b`),
	regexp.MustCompile(`(?i)\b(who won|what happened|stock price|exchange rate|weather (in|today))\b`),
	regexp.MustCompile(`(?i)\bas of (today|now|this (morning|week|month))\b`),
}

// nonSearchPatterns match phrasing that's almost never a search request,
// used to short-circuit the cascade to "no" before trying the slower
// patterns or falling back to an LLM call.
var nonSearchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(write|implement|refactor|debug|fix)\b.*\b(function|code|bug|test)\b`),
	regexp.MustCompile(`(?i)\bexplain (this|the following|how)\b`),
	regexp.MustCompile(`(?i)\btranslate\b`),
	regexp.MustCompile(`(?i)\bsummarize\b`),
}

// regexVerdict is the outcome of the fast-path stage. matched is false when
// neither pattern set fired and the caller should fall through to the LLM
// stage.
type regexVerdict struct {
	matched     bool
	needsSearch bool
}

func classifyByRegex(query string) regexVerdict {
	for _, p := range nonSearchPatterns {
		if p.MatchString(query) {
			return regexVerdict{matched: true, needsSearch: false}
		}
	}
	for _, p := range searchPatterns {
		if p.MatchString(query) {
			return regexVerdict{matched: true, needsSearch: true}
		}
	}
	return regexVerdict{matched: false}
}
