package services

import (
	"context"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openAIReplyTimeout = 8 * time.Second
	supportPrompt      = "You are the GauryKart support assistant. Answer shopper questions about " +
		"prices, shipping across India (3-5 business days), returns within 7 days of delivery for " +
		"damaged or incorrect items, and contact at support@gaurykart.com. Keep replies to two " +
		"sentences. If unsure, say an admin will be with them shortly."
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIResponder asks a chat completion model for the reply and falls back to
// the keyword table on any failure.
type OpenAIResponder struct {
	client   chatCompleter
	model    string
	fallback Responder
	timeout  time.Duration
}

func NewOpenAIResponder(apiKey, model string, fallback Responder) *OpenAIResponder {
	return newOpenAIResponder(openai.NewClient(apiKey), model, fallback)
}

func newOpenAIResponder(client chatCompleter, model string, fallback Responder) *OpenAIResponder {
	if model == "" {
		model = openai.GPT4oMini
	}
	if fallback == nil {
		fallback = NewKeywordResponder()
	}
	return &OpenAIResponder{
		client:   client,
		model:    model,
		fallback: fallback,
		timeout:  openAIReplyTimeout,
	}
}

func (r *OpenAIResponder) Reply(ctx context.Context, text string) string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: supportPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		log.Printf("openai responder: %v", err)
		return r.fallback.Reply(ctx, text)
	}
	if len(resp.Choices) == 0 {
		return r.fallback.Reply(ctx, text)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return r.fallback.Reply(ctx, text)
	}
	return answer
}
