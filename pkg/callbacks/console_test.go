package callbacks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/cortexagent/pkg/cortex"
	"github.com/mkessler/cortexagent/pkg/sse"
)

func event(name, data string) *cortex.Response {
	return &cortex.Response{Event: &sse.Event{Event: name, Data: data}}
}

func TestConsoleRendersExchange(t *testing.T) {
	var out strings.Builder
	console := NewConsole(&out)
	ctx := context.Background()

	user := cortex.NewTextMessage(cortex.RoleUser, "show sales")
	require.NoError(t, console.Handle(ctx, &cortex.Response{Message: &user}))
	require.NoError(t, console.Handle(ctx, event("message.delta",
		`{"delta":{"content":[{"type":"text","text":"Total is "}]}}`)))
	require.NoError(t, console.Handle(ctx, event("message.delta",
		`{"delta":{"content":[{"type":"text","text":"42."}]}}`)))
	require.NoError(t, console.Handle(ctx, event("done", "{}")))

	assert.Equal(t, "> show sales\nTotal is 42.\n", out.String())
}

func TestConsoleRendersToolUse(t *testing.T) {
	var out strings.Builder
	console := NewConsole(&out)
	ctx := context.Background()

	require.NoError(t, console.Handle(ctx, event("message.delta",
		`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"sql1","tool_use_id":"tu-1"}}]}}`)))
	assert.Contains(t, out.String(), "[tool use] sql1")

	out.Reset()
	console.DisplayToolUse = false
	require.NoError(t, console.Handle(ctx, event("message.delta",
		`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"sql1","tool_use_id":"tu-1"}}]}}`)))
	assert.Empty(t, out.String())
}

func TestConsoleRendersGeneratedSQL(t *testing.T) {
	var out strings.Builder
	console := NewConsole(&out)

	require.NoError(t, console.Handle(context.Background(), event("message.delta",
		`{"delta":{"content":[{"type":"tool_results","tool_results":{"name":"analyst1","tool_use_id":"tu-1","content":[{"type":"json","json":{"sql":"SELECT 1"}}]}}]}}`)))
	assert.Contains(t, out.String(), "[generated sql] SELECT 1")
}

func TestConsoleRendersSQLResultMessage(t *testing.T) {
	var out strings.Builder
	console := NewConsole(&out)

	msg := cortex.Message{
		Role: cortex.RoleUser,
		Content: []cortex.ContentBlock{{
			Type: "tool_results",
			ToolResults: &cortex.ToolResults{
				Name:      "sql1",
				ToolUseID: "tu-1",
				Content: []cortex.ResultContent{{
					Type: "json",
					JSON: map[string]any{
						"query_id": "q-9",
						"result_set": map[string]any{
							"columns": []any{"REGION", "TOTAL"},
							"rows":    []any{map[string]any{"REGION": "emea", "TOTAL": 42}},
						},
					},
				}},
			},
		}},
	}
	require.NoError(t, console.Handle(context.Background(), &cortex.Response{Message: &msg}))
	got := out.String()
	assert.Contains(t, got, "[sql results] query q-9")
	assert.Contains(t, got, "REGION")
	assert.Contains(t, got, "emea")
}

func TestConsoleMalformedDelta(t *testing.T) {
	console := NewConsole(&strings.Builder{})
	err := console.Handle(context.Background(), event("message.delta", "{broken"))
	assert.Error(t, err)
}

func TestConsoleIgnoresAssistantMessages(t *testing.T) {
	var out strings.Builder
	console := NewConsole(&out)
	msg := cortex.NewTextMessage(cortex.RoleAssistant, "already streamed")
	require.NoError(t, console.Handle(context.Background(), &cortex.Response{Message: &msg}))
	assert.Empty(t, out.String())
}
