package picture

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPrompt = errors.New("empty picture prompt")
	ErrNoImager    = errors.New("image generation is not configured")
)

type Imager interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

type Generator struct {
	imager Imager
}

// NewGenerator accepts a nil imager; Generate then reports ErrNoImager.
func NewGenerator(imager Imager) *Generator {
	return &Generator{imager: imager}
}

func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if g.imager == nil {
		return nil, ErrNoImager
	}
	img, _, err := g.imager.GenerateImage(ctx, "Нарисуй картинку: "+prompt+". Без подписей и водяных знаков.")
	if err != nil {
		return nil, fmt.Errorf("generate picture: %w", err)
	}
	return img, nil
}
