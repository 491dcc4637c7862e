package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const (
	openAITemperature      = 1
	openAITopP             = 0.9
	openAIPresencePenalty  = 0.2
	openAIFrequencyPenalty = 0.2
	openAIMaxTokens        = 1024
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompat serves every provider that speaks the OpenAI chat completions API.
type OpenAICompat struct {
	name   string
	model  string
	names  bool
	client chatCompleter
}

type OpenAIOptions struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	// Names enables the per-message "name" field; providers that reject it get the
	// name inlined into the content instead.
	Names      bool
	HTTPClient *http.Client
}

func NewOpenAICompat(opts OpenAIOptions) *OpenAICompat {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &OpenAICompat{
		name:   opts.Name,
		model:  opts.Model,
		names:  opts.Names,
		client: openai.NewClientWithConfig(cfg),
	}
}

func NewGroq(apiKey, baseURL, model string) *OpenAICompat {
	return NewOpenAICompat(OpenAIOptions{Name: "groq", APIKey: apiKey, BaseURL: baseURL, Model: model, Names: true})
}

func NewOpenRouter(apiKey, baseURL, model string) *OpenAICompat {
	return NewOpenAICompat(OpenAIOptions{Name: "openrouter", APIKey: apiKey, BaseURL: baseURL, Model: model})
}

func (p *OpenAICompat) Name() string { return p.name }

func (p *OpenAICompat) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
		if m.Name != "" && m.Role == RoleUser {
			if p.names {
				msg.Name = SanitizeName(m.Name)
			} else {
				msg.Content = m.Name + ": " + m.Content
			}
		}
		messages = append(messages, msg)
	}

	temperature := float32(openAITemperature)
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := openAIMaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            p.model,
		Messages:         messages,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		TopP:             openAITopP,
		N:                1,
		PresencePenalty:  openAIPresencePenalty,
		FrequencyPenalty: openAIFrequencyPenalty,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

type transcriptionClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Whisper transcribes voice notes through an OpenAI-compatible audio endpoint.
type Whisper struct {
	client transcriptionClient
	model  string
}

func NewWhisper(apiKey, baseURL, model string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Whisper{client: openai.NewClientWithConfig(cfg), model: model}
}

func (w *Whisper) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return resp.Text, nil
}
