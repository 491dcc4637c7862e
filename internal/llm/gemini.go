package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type embedFunc func(ctx context.Context, model string, contents []*genai.Content) ([][]float32, error)

type GeminiOptions struct {
	APIKey     string
	Models     []string
	ImageModel string
	TTSModel   string
	TTSVoice   string
	EmbedModel string
}

// Gemini talks to the Gemini API. Text and multimodal calls walk the model
// fallback queue; image, speech and embedding calls use their dedicated models.
type Gemini struct {
	generate generateFunc
	embed    embedFunc
	queue    *ModelFallback
	opts     GeminiOptions
	log      *log.Entry
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	embed := func(ctx context.Context, model string, contents []*genai.Content) ([][]float32, error) {
		result, err := client.Models.EmbedContent(ctx, model, contents, nil)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, len(result.Embeddings))
		for i, e := range result.Embeddings {
			out[i] = e.Values
		}
		return out, nil
	}
	return newGemini(client.Models.GenerateContent, embed, opts), nil
}

func newGemini(generate generateFunc, embed embedFunc, opts GeminiOptions) *Gemini {
	return &Gemini{
		generate: generate,
		embed:    embed,
		queue:    NewModelFallback(opts.Models, DefaultModelCooldown),
		opts:     opts,
		log:      log.WithField("component", "gemini"),
	}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		text := m.Content
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		} else if m.Name != "" {
			text = m.Name + ": " + text
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return g.run(ctx, contents, g.config(req))
}

// Describe asks a multimodal model about an image.
func (g *Gemini) Describe(ctx context.Context, system, prompt string, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
		},
	}}
	return g.run(ctx, contents, g.config(Request{System: system}))
}

func (g *Gemini) config(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

func (g *Gemini) run(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	var lastErr error
	for _, model := range g.queue.Queue() {
		resp, err := g.generate(ctx, model, contents, cfg)
		if err == nil {
			text := strings.TrimSpace(resp.Text())
			if text != "" {
				g.queue.MarkOK(model)
				return text, nil
			}
			err = ErrEmptyResponse
			lastErr = fmt.Errorf("%s: %w", model, err)
			g.log.WithField("model", model).Warnln("empty response, trying next model")
			continue
		}
		lastErr = fmt.Errorf("%s: %w", model, err)
		if !isRetryable(err) {
			return "", lastErr
		}
		g.queue.MarkFailed(model)
		g.log.WithError(err).WithField("model", model).Warnln("model failed, falling back")
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if lastErr == nil {
		return "", ErrNoProviders
	}
	return "", lastErr
}

// GenerateImage renders prompt with the image model and returns the first inline image.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := g.generate(ctx, g.opts.ImageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, "", fmt.Errorf("generate image: %w", err)
	}
	for _, part := range firstParts(resp) {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, part.InlineData.MIMEType, nil
		}
	}
	return nil, "", ErrNoImage
}

// Speak synthesises text with the TTS model and returns a WAV file.
func (g *Gemini) Speak(ctx context.Context, text string) ([]byte, error) {
	resp, err := g.generate(ctx, g.opts.TTSModel, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.opts.TTSVoice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	for _, part := range firstParts(resp) {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return PCMToWAV(part.InlineData.Data, ttsSampleRate), nil
		}
	}
	return nil, ErrNoAudio
}

func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	vectors, err := g.embed(ctx, g.opts.EmbedModel, contents)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}
