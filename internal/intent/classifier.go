package intent

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Classifier runs the cache -> regex -> LLM cascade described in spec §4.9.
// A nil Caller is valid: the LLM stage is then skipped and an inconclusive
// regex result defaults to "no search", the same default the teacher's
// Classify falls back to on unparseable output.
type Classifier struct {
	cache   *lruCache
	llm     Caller
	limiter *rate.Limiter
}

// NewClassifier builds a Classifier. caller may be nil to disable the LLM
// fallback stage (regex-only operation). A zero-value rate in cfg falls
// back to DefaultConfig's throttle so callers that only set CacheSize/TTL
// don't accidentally disable the LLM stage entirely.
func NewClassifier(cfg Config, caller Caller) *Classifier {
	rateLimit := cfg.LLMRatePerSecond
	burst := cfg.LLMRateBurst
	if rateLimit <= 0 {
		rateLimit = DefaultLLMRatePerSecond
	}
	if burst <= 0 {
		burst = DefaultLLMRateBurst
	}
	return &Classifier{
		cache:   newLRUCache(cfg.CacheSize, cfg.CacheTTL),
		llm:     caller,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), burst),
	}
}

// Classify decides whether query needs the web-search tool. It never
// returns an error: any LLM-stage failure (timeout, network, unparseable
// reply) degrades to the regex verdict, or to "no search" if the regex
// stage was also inconclusive.
func (c *Classifier) Classify(ctx context.Context, query string) Classification {
	now := time.Now()

	if cached, ok := c.cache.get(query, now); ok {
		return Classification{NeedsSearch: cached, Source: SourceCache}
	}

	verdict := classifyByRegex(query)
	if verdict.matched {
		c.cache.set(query, verdict.needsSearch, now)
		return Classification{NeedsSearch: verdict.needsSearch, Source: SourceRegex}
	}

	needsSearch, source := c.classifyByLLM(ctx, query)
	c.cache.set(query, needsSearch, now)
	return Classification{NeedsSearch: needsSearch, Source: source}
}

func (c *Classifier) classifyByLLM(ctx context.Context, query string) (bool, Source) {
	if c.llm == nil {
		return false, SourceRegex
	}

	// Token-bucket throttle: a burst of cache-miss/regex-inconclusive
	// queries degrades to the regex verdict rather than flooding the
	// classifier's model node with one-off calls.
	if !c.limiter.Allow() {
		return false, SourceRegex
	}

	reply, err := c.llm.Complete(ctx, buildLLMPrompt(query))
	if err != nil {
		return false, SourceRegex
	}

	verdict, ok := parseLLMVerdict(reply)
	if !ok {
		return false, SourceRegex
	}
	return verdict, SourceLLM
}

// CacheSize reports the current number of cached verdicts, for tests and
// the debug metrics endpoint.
func (c *Classifier) CacheSize() int {
	return c.cache.size()
}
