package replies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockService answers with a model hosted on Amazon Bedrock.
type BedrockService struct {
	gen      generator
	business string
	services []string
}

// NewBedrockService creates a Bedrock-backed reply service using the Converse API.
func NewBedrockService(api bedrockConverseAPI, modelID, business string, services []string) (*BedrockService, error) {
	if api == nil {
		return nil, errors.New("replies: bedrock client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("replies: bedrock model id is required")
	}
	return &BedrockService{
		gen:      &bedrockGenerator{api: api, modelID: modelID},
		business: business,
		services: services,
	}, nil
}

func (s *BedrockService) Reply(ctx context.Context, req Request) (Response, error) {
	return promptedReply(ctx, s.gen, s.business, s.services, req)
}

type bedrockGenerator struct {
	api     bedrockConverseAPI
	modelID string
}

func (g *bedrockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	out, err := g.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.modelID),
		System:  []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}},
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(400),
			Temperature: aws.Float32(0.4),
		},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock converse failed: %w", err)
	}
	return bedrockOutputText(out)
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock response did not include a message")
	}

	var b strings.Builder
	for _, block := range msgOut.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	return b.String(), nil
}
