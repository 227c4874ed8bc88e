package openai

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/logger"
)

const (
	transcriptionLanguage = "es"
	completionTemperature = 0.1
)

var failedCalls = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "expenses",
		Subsystem: "openai",
		Name:      "failed_calls_total",
	},
	[]string{"call"},
)

type config interface {
	ApiKey() string
	BaseURL() string
	ChatModel() string
	SpeechModel() string
	Timeout() time.Duration
}

type Client struct {
	client      *goopenai.Client
	chatModel   string
	speechModel string
}

func New(config config) *Client {
	cfg := goopenai.DefaultConfig(config.ApiKey())
	if config.BaseURL() != "" {
		cfg.BaseURL = config.BaseURL()
	}
	cfg.HTTPClient = &http.Client{Timeout: config.Timeout()}
	return &Client{
		client:      goopenai.NewClientWithConfig(cfg),
		chatModel:   config.ChatModel(),
		speechModel: config.SpeechModel(),
	}
}

// CompleteJSON sends one system and one user message and returns the model's
// answer, constrained to a JSON object.
func (c *Client) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: completionTemperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		failedCalls.WithLabelValues("chat").Inc()
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		failedCalls.WithLabelValues("chat").Inc()
		return "", errors.New("chat completion: no choices")
	}
	logger.Debug("chat completion",
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

// Transcribe turns an audio file into Spanish text.
func (c *Client) Transcribe(ctx context.Context, name string, audio []byte) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    c.speechModel,
		FilePath: name,
		Reader:   bytes.NewReader(audio),
		Language: transcriptionLanguage,
		Format:   goopenai.AudioResponseFormatText,
	})
	if err != nil {
		failedCalls.WithLabelValues("transcription").Inc()
		return "", errors.Wrap(err, "transcription")
	}
	return strings.TrimSpace(resp.Text), nil
}
