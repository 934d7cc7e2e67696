package provider

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/slok/iacore/internal/llm"
)

const anthropicVersion = "2023-06-01"

func anthropicAdapter() adapter {
	return adapter{
		defaultEndpoint:  "https://api.anthropic.com/v1/messages",
		defaultModel:     "claude-3-5-haiku-latest",
		defaultAPIKeyEnv: "ANTHROPIC_API_KEY",
		requiresKey:      true,
		buildRequest:     buildAnthropicRequest,
		parseResponse:    parseAnthropicResponse,
		setHeaders: func(r *http.Request, apiKey string) {
			r.Header.Set("x-api-key", apiKey)
			r.Header.Set("anthropic-version", anthropicVersion)
		},
	}
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

func buildAnthropicRequest(model string, req llm.Request) ([]byte, error) {
	// The messages API requires max_tokens.
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: req.Prompt}},
		}},
	})
}

func parseAnthropicResponse(body []byte) (string, error) {
	var response struct {
		Content []anthropicContent `json:"content"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	var texts []string
	for _, c := range response.Content {
		if c.Type == "" || c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}

	return strings.Join(texts, ""), nil
}
