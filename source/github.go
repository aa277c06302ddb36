package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// GitHubFetcher reads a repository contents listing from the GitHub REST API.
type GitHubFetcher struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewGitHubFetcher(endpoint, token string, client *http.Client) *GitHubFetcher {
	return &GitHubFetcher{
		endpoint: endpoint,
		token:    token,
		client:   client,
	}
}

type apiError struct {
	Message string `json:"message"`
}

// Fetch performs a single GET against the contents endpoint. There is no retry.
func (g *GitHubFetcher) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			return nil, fmt.Errorf("listing api error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("listing api returned status %d: %s", resp.StatusCode, string(body))
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	slog.Debug("fetched listing", "endpoint", g.endpoint, "entries", len(entries))
	return entries, nil
}
