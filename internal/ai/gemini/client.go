package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-rotator/internal/retry"
)

const (
	defaultModel = "gemini-2.5-pro"
)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    modelsAPI
	modelName string
	retries   *retry.Engine
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
// Temporary API failures are retried by engine.
func NewGenerator(ctx context.Context, apiKey, model string, engine *retry.Engine) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model, engine), nil
}

func newGenerator(models modelsAPI, model string, engine *retry.Engine) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if engine == nil {
		engine = retry.New(retry.Config{}, nil, zap.NewNop())
	}
	return &Generator{models: models, modelName: model, retries: engine}
}

// GenerateContent sends the prompt to Gemini and returns the textual response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var output string
	err := g.retries.Perform(ctx, retry.Action{
		Name: "gemini generate content",
		Kind: retry.Idempotent,
		Do: func(ctx context.Context, s retry.Strategy) error {
			if s != retry.Direct {
				return retry.ErrUnsupportedStrategy
			}
			resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), nil)
			if err != nil {
				return classify(err)
			}
			output, err = responseText(resp)
			return err
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return output, nil
}

// classify marks rate limiting and server side failures as transient.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return retry.MarkTransient(err)
		}
	}
	return err
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	var builder strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				text := strings.TrimSpace(part.Text)
				if text == "" {
					continue
				}
				if builder.Len() > 0 {
					builder.WriteString("\n")
				}
				builder.WriteString(text)
			}
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
