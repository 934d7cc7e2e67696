package provider

import (
	"encoding/json"
	"net/http"

	"github.com/slok/iacore/internal/llm"
)

func openAIAdapter() adapter {
	return adapter{
		defaultEndpoint:  "https://api.openai.com/v1/chat/completions",
		defaultModel:     "gpt-4o-mini",
		defaultAPIKeyEnv: "OPENAI_API_KEY",
		requiresKey:      true,
		buildRequest:     buildChatCompletionRequest,
		parseResponse:    parseChatCompletionResponse,
		setHeaders: func(r *http.Request, apiKey string) {
			r.Header.Set("authorization", "Bearer "+apiKey)
		},
	}
}

// Ollama serves the same chat completions API locally, the key is optional.
func ollamaAdapter() adapter {
	return adapter{
		defaultEndpoint: "http://localhost:11434/v1/chat/completions",
		defaultModel:    "llama3.2",
		buildRequest:    buildChatCompletionRequest,
		parseResponse:   parseChatCompletionResponse,
		setHeaders: func(r *http.Request, apiKey string) {
			if apiKey != "" {
				r.Header.Set("authorization", "Bearer "+apiKey)
			}
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

func buildChatCompletionRequest(model string, req llm.Request) ([]byte, error) {
	return json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

func parseChatCompletionResponse(body []byte) (string, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Message.Content, nil
}
