package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient implements TextGenerator on the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) model(name string) *genai.GenerativeModel {
	m := c.client.GenerativeModel(name)
	m.SetTemperature(0.7)
	return m
}

func (c *GeminiClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.model(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func (c *GeminiClient) GenerateStream(ctx context.Context, model, prompt string) (ChunkStream, error) {
	it := c.model(model).GenerateContentStream(ctx, genai.Text(prompt))
	return &geminiStream{it: it}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

type geminiStream struct {
	it *genai.GenerateContentResponseIterator
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err := s.it.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		// Safety-only or empty frames carry no text.
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error { return nil }

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}
