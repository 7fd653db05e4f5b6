package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/toolset"
)

// maxResponseSize is the maximum response body size (4 MB).
const maxResponseSize = 4 * 1024 * 1024

const searchSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "The search query"
		},
		"max_results": {
			"type": "integer",
			"description": "Maximum number of results to return"
		}
	},
	"required": ["query"]
}`

// searchTool implements toolset.Tool over the Tavily search endpoint.
type searchTool struct {
	module *Module
}

func (s *searchTool) Name() string { return "web_search" }

func (s *searchTool) Description() string {
	return "Search the web for current information. Returns a short answer and a list of relevant results."
}

func (s *searchTool) Schema() json.RawMessage {
	return json.RawMessage(searchSchema)
}

// searchArgs are the model-supplied arguments.
type searchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// --- Tavily API types (unexported, serialization only) ---

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string         `json:"answer"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Invoke implements toolset.Tool.
func (s *searchTool) Invoke(ctx context.Context, args json.RawMessage) (toolset.Output, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return toolset.Output{
			Content: fmt.Sprintf("invalid arguments: %v", err),
			IsError: true,
		}, nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return toolset.Output{Content: "query must not be empty", IsError: true}, nil
	}

	maxResults := s.module.config.MaxResults
	if in.MaxResults > 0 && in.MaxResults < maxResults {
		maxResults = in.MaxResults
	}

	resp, err := s.module.search(ctx, searchRequest{
		APIKey:        s.module.config.APIKey,
		Query:         in.Query,
		MaxResults:    maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return toolset.Output{}, err
	}

	return toolset.Output{Content: formatResults(resp)}, nil
}

// search sends a request to the Tavily search endpoint.
func (m *Module) search(ctx context.Context, req searchRequest) (*searchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("websearch: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("websearch: request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("websearch: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("websearch: unmarshal response: %w", err)
	}

	return &resp, nil
}

// formatResults renders a search response as plain text for the model.
func formatResults(resp *searchResponse) string {
	var b strings.Builder

	if resp.Answer != "" {
		b.WriteString("Answer: ")
		b.WriteString(resp.Answer)
		b.WriteString("\n\n")
	}

	if len(resp.Results) == 0 {
		if b.Len() == 0 {
			return "No results found."
		}
		return strings.TrimRight(b.String(), "\n")
	}

	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}

	return strings.TrimRight(b.String(), "\n")
}
