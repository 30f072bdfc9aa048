package deepseekapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"skazkabot/httpmiddleware"
	"skazkabot/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	SYSTEM = "system"
	USER   = "user"
)

const (
	defaultAPIURL  = "https://api.deepseek.com/v1/chat/completions"
	modelName      = "deepseek-chat"
	temperature    = 0.7
	maxOutputToken = 4000
)

type ChatCompletionInputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequestInput struct {
	Model       string                       `json:"model"`
	Messages    []ChatCompletionInputMessage `json:"messages"`
	Temperature float64                      `json:"temperature"`
	MaxTokens   int                          `json:"max_tokens"`
}

type ChatResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationError reports a failed story generation. The dialogue engine
// recovers from it with a fixed fallback tale, so it is never surfaced to
// the user directly.
type GenerationError struct {
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("story generation failed (status %d): %s", e.StatusCode, e.Message)
}

type DeepSeekConnectProps struct {
	Logger *logger.LogMiddleware
}

type DeepSeek struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
}

func Connect(ctx context.Context, args DeepSeekConnectProps) *DeepSeek {
	tracer := otel.Tracer("deepseekapi/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))

	return &DeepSeek{logger: args.Logger, semaphore: sem}
}

// GenerateStory composes the tale prompt from the collected answers and
// performs a single completion request. The caller substitutes the fallback
// template on failure, so there is no retry loop here.
func (d *DeepSeek) GenerateStory(ctx context.Context, answers map[string]string) (string, error) {
	tracer := otel.Tracer("deepseekapi/GenerateStory")
	ctx, span := tracer.Start(ctx, "GenerateStory")
	defer span.End()

	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	apiURL := os.Getenv("DEEPSEEK_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	requestInput := ChatRequestInput{
		Model: modelName,
		Messages: []ChatCompletionInputMessage{
			{Role: SYSTEM, Content: systemPrompt},
			{Role: USER, Content: ComposePrompt(answers)},
		},
		Temperature: temperature,
		MaxTokens:   maxOutputToken,
	}

	span.SetAttributes(
		attribute.String("api.url", apiURL),
		attribute.String("request.model", requestInput.Model),
		attribute.Int("request.max_tokens", requestInput.MaxTokens),
	)

	jsonData, err := json.Marshal(requestInput)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("could not generate request body: %w", err)
	}

	if err := d.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer d.semaphore.Release(1)

	respBody, err := httpmiddleware.HttpRequest(ctx, httpmiddleware.HttpRequestStruct{
		Method: "POST",
		Url:    apiURL,
		Body:   bytes.NewBuffer(jsonData),
		Headers: map[string]string{
			"authorization": "Bearer " + apiKey,
			"content-type":  "application/json",
		},
	})
	if err != nil {
		span.RecordError(err)
		d.logger.Logger(ctx).Error("[DeepSeek-API] Completion request failed", zap.Error(err))

		var statusErr *httpmiddleware.StatusError
		if errors.As(err, &statusErr) {
			return "", &GenerationError{StatusCode: statusErr.StatusCode, Message: statusErr.Body}
		}
		return "", &GenerationError{Message: err.Error()}
	}

	var messageResponse ChatResponse
	if err := json.Unmarshal(respBody, &messageResponse); err != nil {
		span.RecordError(err)
		return "", &GenerationError{Message: "could not parse completion response: " + err.Error()}
	}
	if len(messageResponse.Choices) == 0 || messageResponse.Choices[0].Message.Content == "" {
		span.AddEvent("Empty completion")
		return "", &GenerationError{Message: "no completion received"}
	}

	span.AddEvent("Request successful")
	return messageResponse.Choices[0].Message.Content, nil
}
