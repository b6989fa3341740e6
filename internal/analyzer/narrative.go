package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Narrator rewrites the audit's canned recommendations into a short
// narrative using OpenAI. Entirely optional: a nil *Narrator is valid,
// and enrichment failures leave the canned text in place.
type Narrator struct {
	openAI *openai.Client
}

func NewNarrator(apiKey string) *Narrator {
	if apiKey == "" {
		return nil
	}
	return &Narrator{openAI: openai.NewClient(apiKey)}
}

func (n *Narrator) Enrich(ctx context.Context, audit *Audit) {
	prompt := fmt.Sprintf(
		"You are a mixing engineer reviewing a %s mix. "+
			"Rewrite the following checklist as one short paragraph of plain advice for a producer:\n%s",
		strings.ToLower(strings.ReplaceAll(audit.Meta.Context, "_", " ")),
		strings.Join(audit.Summary.WhatToFixFirst, "\n"),
	)

	resp, err := n.openAI.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 300,
	})
	if err != nil {
		slog.Error("narrative enrichment failed, keeping canned summary", "err", err)
		return
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return
	}

	audit.Summary.Headline = resp.Choices[0].Message.Content
	slog.Debug("audit narrative enriched",
		"model", openai.GPT4oMini,
		"tokens_used", resp.Usage.TotalTokens)
}
