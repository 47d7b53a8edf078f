// Package openaicompat is the gateway's HTTP client for an upstream node
// (spec §6 outbound interfaces: /v1/chat/completions, /v1/models, /health,
// /cache, /cache/warm). Grounded on the teacher's
// internal/upstream/openaicompat/client.go Proxy function and response.go
// response shapes, generalized from "relay raw bytes to any OpenAI-
// compatible provider with an API key" to "marshal/unmarshal the translate
// package's typed request/response structs against a cluster node," since
// this gateway always speaks Anthropic inbound and needs typed access to
// usage and tool-call fields rather than a byte passthrough, and nodes are
// trusted cluster members rather than external providers needing bearer
// auth.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/gwerror"
	"github.com/rpay/cluster-gateway/internal/translate"
)

// sharedTransport reuses connections across nodes the same way the
// teacher's package-level transport does, sized for a cluster of upstream
// nodes rather than a single external provider.
var sharedTransport = &http.Transport{
	MaxIdleConns:        500,
	MaxIdleConnsPerHost: 100,
	IdleConnTimeout:     120 * time.Second,
}

// Client talks to any node in the cluster over its OpenAI-compatible API.
type Client struct {
	http *http.Client
}

// NewClient builds a Client with the shared pooled transport and a
// generous timeout; callers bound individual requests via context.
func NewClient() *Client {
	return &Client{http: &http.Client{Transport: sharedTransport, Timeout: 5 * time.Minute}}
}

func (c *Client) newRequest(ctx context.Context, method string, node cluster.Node, path string, body []byte) (*http.Request, error) {
	url := strings.TrimRight(node.BaseURL, "/") + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// cacheHitHeader is the node-reported hint from spec §6 ("response header
// X-Cache-Hit: 1|0 hints the router to update the cache registry").
const cacheHitHeader = "X-Cache-Hit"

// ChatCompletions performs a non-streaming /v1/chat/completions call. The
// second return value reflects the node's X-Cache-Hit response header.
func (c *Client) ChatCompletions(ctx context.Context, node cluster.Node, body *translate.OpenAIRequest) (*translate.OpenAIResponse, bool, error) {
	body.Stream = false
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, node, "/v1/chat/completions", payload)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, gwerror.New(gwerror.KindNodeDispatchPreCommit, node.ID, fmt.Sprintf("dispatch: %v", err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, gwerror.New(gwerror.KindNodeDispatchPreCommit, node.ID, fmt.Sprintf("read body: %v", err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, gwerror.NewWithStatus(gwerror.KindNodeDispatchPreCommit, node.ID, resp.StatusCode, fmt.Sprintf("node returned %d: %s", resp.StatusCode, string(raw)), nil)
	}

	var out translate.OpenAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, gwerror.New(gwerror.KindProtocolTranslation, node.ID, fmt.Sprintf("decode response: %v", err), err)
	}
	return &out, resp.Header.Get(cacheHitHeader) == "1", nil
}

// ChatCompletionsStream performs a streaming /v1/chat/completions call and
// returns the raw response body for the caller to feed through
// internal/sse.Parser; the caller owns closing it. The second return value
// reflects the node's X-Cache-Hit response header.
func (c *Client) ChatCompletionsStream(ctx context.Context, node cluster.Node, body *translate.OpenAIRequest) (io.ReadCloser, bool, error) {
	body.Stream = true
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, node, "/v1/chat/completions", payload)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, gwerror.New(gwerror.KindNodeDispatchPreCommit, node.ID, fmt.Sprintf("dispatch: %v", err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, false, gwerror.NewWithStatus(gwerror.KindNodeDispatchPreCommit, node.ID, resp.StatusCode, fmt.Sprintf("node returned %d: %s", resp.StatusCode, string(raw)), nil)
	}
	return resp.Body, resp.Header.Get(cacheHitHeader) == "1", nil
}

// Model describes one entry in a node's /v1/models listing.
type Model struct {
	ID            string `json:"id"`
	ContextWindow int    `json:"context_window,omitempty"`
}

type modelsResponse struct {
	Data []Model `json:"data"`
}

// Models lists the models a node currently serves.
func (c *Client) Models(ctx context.Context, node cluster.Node) ([]Model, error) {
	req, err := c.newRequest(ctx, http.MethodGet, node, "/v1/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("node %s /v1/models returned %d", node.ID, resp.StatusCode)
	}

	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Complete sends a single-turn, non-streaming chat completion and returns
// the assistant's text reply, the primitive intent.Caller needs.
func (c *Client) Complete(ctx context.Context, node cluster.Node, model, prompt string) (string, error) {
	resp, _, err := c.ChatCompletions(ctx, node, &translate.OpenAIRequest{
		Model:    model,
		Messages: []translate.OpenAIMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("node %s returned no choices", node.ID)
	}
	return resp.Choices[0].Message.Content, nil
}

// BoundCaller adapts Client to intent.Caller for one fixed node/model pair,
// since intent.Caller.Complete takes only a prompt.
type BoundCaller struct {
	Client *Client
	Node   cluster.Node
	Model  string
}

func (b BoundCaller) Complete(ctx context.Context, prompt string) (string, error) {
	return b.Client.Complete(ctx, b.Node, b.Model, prompt)
}
