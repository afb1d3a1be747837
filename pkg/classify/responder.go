package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

// Responder generates a short spoken-style reply to a transcript chunk.
// history is the retained conversation, oldest first. Implementations are
// called from multiple workers and must be safe for concurrent use.
type Responder interface {
	Respond(ctx context.Context, text string, history []Turn) (string, error)
}

// defaultPrompt keeps replies terse enough to speak over a live session.
const defaultPrompt = "You are a minimal conversation collaborator for a live drawing session. " +
	"Reflect the key point back and ask one short question. " +
	"Strict limit: fifteen words total."

// Agent is a Responder backed by an OpenAI-compatible chat completion
// endpoint. Replies are requested as structured JSON output and repaired
// when the model returns something slightly off-grammar.
type Agent struct {
	Client *openai.Client
	Model  string

	// Prompt replaces the built-in system prompt when set.
	Prompt string

	// Temperature and MaxTokens bound the completion. Defaults 0.3 and 80.
	Temperature float64
	MaxTokens   int64
}

var _ Responder = (*Agent)(nil)

// agentReply is the structured output contract requested from the model.
type agentReply struct {
	Response string `json:"response"`
}

func agentSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"response": {Type: "string", Description: "Reply of fifteen words or fewer."},
		},
		Required:             []string{"response"},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}}, // false schema
	}
}

func (a *Agent) Respond(ctx context.Context, text string, history []Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(a.prompt()))
	for _, turn := range history {
		switch turn.Role {
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(turn.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(text))

	params := openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               a.Model,
		Temperature:         param.NewOpt(a.temperature()),
		MaxCompletionTokens: param.NewOpt(a.maxTokens()),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "agent_reply",
					Description: param.NewOpt("Short reply to the latest utterance."),
					Schema:      agentSchema(),
					Strict:      param.NewOpt(true),
				},
			},
		},
	}

	resp, err := a.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("blocked: %s", choice.Message.Refusal)
	}
	if choice.FinishReason != "stop" {
		return "", fmt.Errorf("unexpected finish reason: %s", choice.FinishReason)
	}

	var reply agentReply
	if err := unmarshalReply([]byte(choice.Message.Content), &reply); err != nil {
		return "", fmt.Errorf("reply parse: %w", err)
	}
	out := strings.TrimSpace(reply.Response)
	if out == "" {
		return "", errors.New("empty reply")
	}
	return out, nil
}

func (a *Agent) prompt() string {
	if a.Prompt != "" {
		return a.Prompt
	}
	return defaultPrompt
}

func (a *Agent) temperature() float64 {
	if a.Temperature > 0 {
		return a.Temperature
	}
	return 0.3
}

func (a *Agent) maxTokens() int64 {
	if a.MaxTokens > 0 {
		return a.MaxTokens
	}
	return 80
}

// unmarshalReply unmarshals the model's JSON, attempting a repair pass when
// the raw text fails with a syntax error.
func unmarshalReply(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return rerr
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
