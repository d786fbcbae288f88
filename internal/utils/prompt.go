package utils

import (
	"fmt"
	"strings"

	"github.com/mikey/mail-shield/internal/core"
)

// ClassifierSystemPrompt is sent as the system role where providers support one
const ClassifierSystemPrompt = "You are an email security classifier. Respond only with JSON."

const classifierPromptFormat = `You are an email security classifier. Decide whether the email below is safe or dangerous.
Respond with a JSON object containing:
- status: one of "safe", "suspicious", "spam", "phishing", "scam", "fraudulent", "suspicious_url"
- reason: string (a short explanation, at most one sentence)
- risk: number between 0 and 1 (higher means more dangerous)

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// ClassifierPrompt renders the user prompt for a scan request
func ClassifierPrompt(req *core.ScanRequest) string {
	return fmt.Sprintf(classifierPromptFormat, req.Sender, req.Subject, req.Body)
}

// ModelReply is the JSON object the prompt asks for
type ModelReply struct {
	Status string   `json:"status"`
	Reason string   `json:"reason"`
	Risk   *float64 `json:"risk"`
}

// ParseModelReply turns raw model text into a verdict. Undecodable replies
// and replies without a status wrap core.ErrMalformedResponse.
func ParseModelReply(text, model string) (*core.Verdict, error) {
	var reply ModelReply
	if err := DecodeJSONReply(text, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	label := strings.ToLower(strings.TrimSpace(reply.Status))
	if label == "" {
		return nil, fmt.Errorf("%w: reply has no status", core.ErrMalformedResponse)
	}
	return &core.Verdict{
		Label:  label,
		Reason: strings.TrimSpace(reply.Reason),
		Risk:   reply.Risk,
		Model:  model,
	}, nil
}
