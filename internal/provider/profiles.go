package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// Placeholder is returned when a successful response carries no text
const Placeholder = "No response generated."

// Profile describes how to talk to one provider's chat API
type Profile struct {
	ID             string
	DisplayName    string
	DefaultBaseURL string
	DefaultModel   string
	Endpoint       func(baseURL, apiKey, model string) string
	AuthHeaders    func(apiKey string) map[string]string
	BuildBody      func(messages []models.ChatMessage, model string) interface{}
	// ExtractText reports ok=false when the text field is absent and an error when the body is not JSON.
	ExtractText func(body []byte) (text string, ok bool, err error)
}

// Provider ids
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
)

// DefaultProfiles returns the built-in providers in display order
func DefaultProfiles() []Profile {
	return []Profile{openAIProfile(), anthropicProfile(), geminiProfile()}
}

func openAIProfile() Profile {
	return Profile{
		ID:             OpenAI,
		DisplayName:    "OpenAI",
		DefaultBaseURL: "https://api.openai.com",
		DefaultModel:   "gpt-4o-mini",
		Endpoint: func(baseURL, _, _ string) string {
			return baseURL + "/v1/chat/completions"
		},
		AuthHeaders: func(apiKey string) map[string]string {
			return map[string]string{"Authorization": "Bearer " + apiKey}
		},
		BuildBody: func(messages []models.ChatMessage, model string) interface{} {
			return map[string]interface{}{
				"model":    model,
				"messages": messages,
			}
		},
		ExtractText: func(body []byte) (string, bool, error) {
			var resp struct {
				Choices []struct {
					Message struct {
						Content *string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", false, fmt.Errorf("failed to decode response: %w", err)
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
				return "", false, nil
			}
			return *resp.Choices[0].Message.Content, true, nil
		},
	}
}

// The messages API takes the system prompt as a top-level field.
func anthropicProfile() Profile {
	return Profile{
		ID:             Anthropic,
		DisplayName:    "Anthropic Claude",
		DefaultBaseURL: "https://api.anthropic.com",
		DefaultModel:   "claude-3-5-sonnet-20241022",
		Endpoint: func(baseURL, _, _ string) string {
			return baseURL + "/v1/messages"
		},
		AuthHeaders: func(apiKey string) map[string]string {
			return map[string]string{
				"x-api-key":         apiKey,
				"anthropic-version": "2023-06-01",
			}
		},
		BuildBody: func(messages []models.ChatMessage, model string) interface{} {
			var system []string
			chat := make([]models.ChatMessage, 0, len(messages))
			for _, m := range messages {
				if m.Role == models.RoleSystem {
					system = append(system, m.Content)
					continue
				}
				chat = append(chat, m)
			}
			body := map[string]interface{}{
				"model":      model,
				"max_tokens": 4096,
				"messages":   chat,
			}
			if len(system) > 0 {
				body["system"] = strings.Join(system, "\n\n")
			}
			return body
		},
		ExtractText: func(body []byte) (string, bool, error) {
			var resp struct {
				Content []struct {
					Type string  `json:"type"`
					Text *string `json:"text"`
				} `json:"content"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", false, fmt.Errorf("failed to decode response: %w", err)
			}
			if len(resp.Content) == 0 || resp.Content[0].Text == nil {
				return "", false, nil
			}
			return *resp.Content[0].Text, true, nil
		},
	}
}

// Gemini authenticates with a key query parameter and calls the assistant role "model".
func geminiProfile() Profile {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	return Profile{
		ID:             Gemini,
		DisplayName:    "Google Gemini",
		DefaultBaseURL: "https://generativelanguage.googleapis.com",
		DefaultModel:   "gemini-1.5-flash",
		Endpoint: func(baseURL, apiKey, model string) string {
			return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
				baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
		},
		AuthHeaders: func(string) map[string]string {
			return nil
		},
		BuildBody: func(messages []models.ChatMessage, _ string) interface{} {
			var system []string
			contents := make([]content, 0, len(messages))
			for _, m := range messages {
				switch m.Role {
				case models.RoleSystem:
					system = append(system, m.Content)
				case models.RoleAssistant:
					contents = append(contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
				default:
					contents = append(contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
				}
			}
			body := map[string]interface{}{
				"contents": contents,
			}
			if len(system) > 0 {
				body["systemInstruction"] = content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
			}
			return body
		},
		ExtractText: func(body []byte) (string, bool, error) {
			var resp struct {
				Candidates []struct {
					Content struct {
						Parts []struct {
							Text *string `json:"text"`
						} `json:"parts"`
					} `json:"content"`
				} `json:"candidates"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", false, fmt.Errorf("failed to decode response: %w", err)
			}
			if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 ||
				resp.Candidates[0].Content.Parts[0].Text == nil {
				return "", false, nil
			}
			return *resp.Candidates[0].Content.Parts[0].Text, true, nil
		},
	}
}
