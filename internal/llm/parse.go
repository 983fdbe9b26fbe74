package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

type tagResponse struct {
	Tags   []string `json:"tags"`
	Labels []string `json:"labels"`
}

// parseTagResponse parses a {"tags": [...], "labels": [...]} model reply.
func parseTagResponse(provider, text string) (*ProviderResult, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, providerErr(provider, KindBadResponse, err)
	}

	var resp tagResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, providerErr(provider, KindBadResponse, fmt.Errorf("failed to parse response JSON: %w (response: %s)", err, jsonStr))
	}

	result := normalize(resp.Tags, resp.Labels)
	if len(result.Tags) == 0 && len(result.Labels) == 0 {
		return nil, providerErr(provider, KindEmpty, nil)
	}
	return result, nil
}
