package services

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestKeywordResponderReplies(t *testing.T) {
	responder := NewKeywordResponder()

	cases := []struct {
		name string
		text string
		want string
	}{
		{name: "hello wins over hi", text: "Hello hi there", want: "Hello! How can I help you today?"},
		{name: "case insensitive", text: "WHAT IS THE PRICE", want: "Our prices vary depending on the product. Please check the product page for details."},
		{name: "shipping contains hi", text: "shipping?", want: "Hi there! Welcome to GauryKart."},
		{name: "return", text: "can I return it", want: "You can return products within 7 days of delivery if they are damaged or incorrect."},
		{name: "contact", text: "contact", want: "You can contact us at support@gaurykart.com."},
		{name: "fallback", text: "xyz", want: FallbackReply},
		{name: "empty", text: "", want: FallbackReply},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := responder.Reply(context.Background(), tc.text); got != tc.want {
				t.Fatalf("Reply(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

type stubCompleter struct {
	resp    openai.ChatCompletionResponse
	err     error
	lastReq openai.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	return s.resp, s.err
}

func TestOpenAIResponderUsesModelAnswer(t *testing.T) {
	client := &stubCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "  Delivery takes 3-5 days.  "}}},
	}}
	responder := newOpenAIResponder(client, "", nil)

	got := responder.Reply(context.Background(), "when will it arrive")
	if got != "Delivery takes 3-5 days." {
		t.Fatalf("unexpected reply %q", got)
	}
	if client.lastReq.Model != openai.GPT4oMini {
		t.Fatalf("expected default model, got %q", client.lastReq.Model)
	}
	if len(client.lastReq.Messages) != 2 || client.lastReq.Messages[1].Content != "when will it arrive" {
		t.Fatalf("unexpected request messages: %+v", client.lastReq.Messages)
	}
}

func TestOpenAIResponderFallsBackToKeywords(t *testing.T) {
	cases := map[string]*stubCompleter{
		"error":      {err: errors.New("upstream down")},
		"no choices": {},
		"blank answer": {resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: " "}}},
		}},
	}

	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			responder := newOpenAIResponder(client, "gpt-test", NewKeywordResponder())
			got := responder.Reply(context.Background(), "contact")
			if got != "You can contact us at support@gaurykart.com." {
				t.Fatalf("expected keyword fallback, got %q", got)
			}
		})
	}
}
