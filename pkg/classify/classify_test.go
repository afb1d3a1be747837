package classify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func TestHistoryBounds(t *testing.T) {
	h := NewHistory(2)
	h.Record("one", "1")
	h.Record("two", "2")
	h.Record("three", "3")

	turns := h.Turns()
	if len(turns) != 4 {
		t.Fatalf("len(Turns) = %d, want 4", len(turns))
	}
	if turns[0].Content != "two" || turns[0].Role != RoleUser {
		t.Errorf("oldest turn = %+v, want user %q", turns[0], "two")
	}
	if turns[3].Content != "3" || turns[3].Role != RoleAssistant {
		t.Errorf("newest turn = %+v, want assistant %q", turns[3], "3")
	}
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}

	h.SetMaxTurns(1)
	turns = h.Turns()
	if len(turns) != 2 || turns[0].Content != "three" {
		t.Errorf("after SetMaxTurns(1): turns = %+v, want the newest exchange", turns)
	}

	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", h.Len())
	}
}

func TestHistoryDefaults(t *testing.T) {
	h := NewHistory(0)
	if h.MaxTurns() != DefaultMaxTurns {
		t.Errorf("MaxTurns = %d, want %d", h.MaxTurns(), DefaultMaxTurns)
	}
	h.SetMaxTurns(-1)
	if h.MaxTurns() != DefaultMaxTurns {
		t.Errorf("MaxTurns after SetMaxTurns(-1) = %d, want %d", h.MaxTurns(), DefaultMaxTurns)
	}
}

// completionServer serves a single canned chat completion and captures the
// request body for inspection.
func completionServer(t *testing.T, content, finishReason string, captured *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			*captured = body
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": finishReason,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAgent(srv *httptest.Server) *Agent {
	client := openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
	)
	return &Agent{Client: &client, Model: "test-model"}
}

func TestAgentRespond(t *testing.T) {
	var captured []byte
	srv := completionServer(t, `{"response": "Blue whales. How big exactly?"}`, "stop", &captured)
	agent := newTestAgent(srv)

	history := []Turn{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "Hi. What topic?"},
	}
	reply, err := agent.Respond(context.Background(), "whales are huge", history)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if reply != "Blue whales. How big exactly?" {
		t.Errorf("reply = %q, want %q", reply, "Blue whales. How big exactly?")
	}

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	if err := json.Unmarshal(captured, &req); err != nil {
		t.Fatalf("request decode failed: %v", err)
	}
	if req.Model != "test-model" {
		t.Errorf("request model = %q, want %q", req.Model, "test-model")
	}
	if len(req.Messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("messages[0].role = %q, want system", req.Messages[0].Role)
	}
	if req.Messages[1].Content != "hello" || req.Messages[2].Content != "Hi. What topic?" {
		t.Errorf("history not forwarded: %+v", req.Messages[1:3])
	}
	if req.Messages[3].Role != "user" || req.Messages[3].Content != "whales are huge" {
		t.Errorf("messages[3] = %+v, want the current utterance", req.Messages[3])
	}
	if req.ResponseFormat.Type != "json_schema" {
		t.Errorf("response_format.type = %q, want json_schema", req.ResponseFormat.Type)
	}
}

func TestAgentRepairsReply(t *testing.T) {
	// Truncated JSON from the model is repaired rather than rejected.
	srv := completionServer(t, `{"response": "Sounds fun`, "stop", nil)
	agent := newTestAgent(srv)

	reply, err := agent.Respond(context.Background(), "let's sketch something", nil)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if reply != "Sounds fun" {
		t.Errorf("reply = %q, want %q", reply, "Sounds fun")
	}
}

func TestAgentUnexpectedFinish(t *testing.T) {
	srv := completionServer(t, `{"response": "cut off mid`, "length", nil)
	agent := newTestAgent(srv)

	_, err := agent.Respond(context.Background(), "anything", nil)
	if err == nil || !strings.Contains(err.Error(), "finish reason") {
		t.Fatalf("err = %v, want a finish reason error", err)
	}
}
