package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/utils"
)

// Classifier scores messages with an OpenAI chat model
type Classifier struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewClassifier creates a new OpenAI classifier
func NewClassifier(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// Classify implements core.Classifier
func (c *Classifier) Classify(ctx context.Context, req *core.ScanRequest) (*core.Verdict, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: utils.ClassifierSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: utils.ClassifierPrompt(req),
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &core.StatusError{Code: apiErr.HTTPStatusCode, Detail: apiErr.Message}
		}
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w: %v", core.ErrBackendOffline, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from OpenAI", core.ErrMalformedResponse)
	}

	c.logger.Debug("OpenAI classification reply",
		zap.String("model", c.modelName),
		zap.String("request_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return utils.ParseModelReply(resp.Choices[0].Message.Content, c.modelName)
}
