package replies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const replyInstructions = `You are the website assistant for %s, a studio offering: %s.
Answer the visitor in two or three friendly sentences.
Respond with JSON only: {"reply": string, "show_contact_form": bool, "show_appointment_form": bool, "action": string}.
Set show_appointment_form or action "open_form" when the visitor wants to book a call.`

type generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GeminiService answers with Google Gemini.
type GeminiService struct {
	gen      generator
	business string
	services []string
	closer   func() error
}

// NewGeminiService creates a Gemini-backed reply service.
func NewGeminiService(ctx context.Context, apiKey, modelID, business string, services []string) (*GeminiService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("replies: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("replies: failed to create gemini client: %w", err)
	}
	g := &geminiGenerator{client: client, modelID: modelID}
	return &GeminiService{gen: g, business: business, services: services, closer: client.Close}, nil
}

func (s *GeminiService) Reply(ctx context.Context, req Request) (Response, error) {
	return promptedReply(ctx, s.gen, s.business, s.services, req)
}

// Close releases the Gemini client.
func (s *GeminiService) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// promptedReply sends req as JSON under the reply instructions and parses
// whatever the model returns.
func promptedReply(ctx context.Context, gen generator, business string, services []string, req Request) (Response, error) {
	system := fmt.Sprintf(replyInstructions, business, strings.Join(services, ", "))
	prompt, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("replies: marshal prompt: %w", err)
	}

	text, err := gen.Generate(ctx, system, string(prompt))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return parseModelOutput(text), nil
}

// parseModelOutput accepts JSON, optionally fenced. Anything else is the
// reply text itself.
func parseModelOutput(text string) Response {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out Response
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), &out) == nil {
		out.Reply = strings.TrimSpace(out.Reply)
		return out
	}
	return Response{Reply: strings.TrimSpace(text)}
}

type geminiGenerator struct {
	client  *genai.Client
	modelID string
}

func (g *geminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.modelID)
	model.SetTemperature(0.4)
	model.SetMaxOutputTokens(400)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
