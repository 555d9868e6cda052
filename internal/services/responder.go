package services

import (
	"context"
	"strings"
)

// Responder produces the automated reply for a user message. Implementations
// must always return a reply.
type Responder interface {
	Reply(ctx context.Context, text string) string
}

const FallbackReply = "I am an AI bot. I didn't quite understand that. An admin will be with you shortly."

type keywordReply struct {
	keyword string
	reply   string
}

// Order matters: the first keyword found in the message wins.
var defaultKeywordReplies = []keywordReply{
	{keyword: "hello", reply: "Hello! How can I help you today?"},
	{keyword: "hi", reply: "Hi there! Welcome to GauryKart."},
	{keyword: "price", reply: "Our prices vary depending on the product. Please check the product page for details."},
	{keyword: "shipping", reply: "We offer shipping across India. Standard delivery takes 3-5 business days."},
	{keyword: "return", reply: "You can return products within 7 days of delivery if they are damaged or incorrect."},
	{keyword: "contact", reply: "You can contact us at support@gaurykart.com."},
}

type KeywordResponder struct {
	replies  []keywordReply
	fallback string
}

func NewKeywordResponder() *KeywordResponder {
	return &KeywordResponder{
		replies:  defaultKeywordReplies,
		fallback: FallbackReply,
	}
}

func (r *KeywordResponder) Reply(_ context.Context, text string) string {
	lower := strings.ToLower(text)
	for _, entry := range r.replies {
		if strings.Contains(lower, entry.keyword) {
			return entry.reply
		}
	}
	return r.fallback
}
