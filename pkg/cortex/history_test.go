package cortex

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/cortexagent/pkg/sse"
)

func TestMessageHistoryWireProjectionStripsResults(t *testing.T) {
	h := &MessageHistory{}
	h.Add(NewTextMessage(RoleUser, "show me sales"))
	table := &ResultTable{
		Columns: []string{"REGION", "TOTAL"},
		Rows:    []map[string]any{{"REGION": "emea", "TOTAL": 42}},
	}
	h.Add(newSQLResultMessage("sql1", "tu-1", "q-123", table))

	wire := h.forAgentCall()
	require.Len(t, wire, 2)
	tr := wire[1].ToolResults()
	require.NotNil(t, tr)
	require.Len(t, tr.Content, 1)
	payload := tr.Content[0].JSON
	assert.Equal(t, "q-123", payload[resultKeyQueryID])
	assert.NotContains(t, payload, resultKeyTable)

	// The projection never mutates the stored history.
	stored := h.Snapshot()[1].ToolResults()
	assert.Contains(t, stored.Content[0].JSON, resultKeyTable)
}

func TestMessageHistoryCompletionProjection(t *testing.T) {
	h := &MessageHistory{}
	h.Add(NewTextMessage(RoleUser, "summarize this"))
	h.Add(Message{Role: RoleAssistant, Content: []ContentBlock{
		{Type: "tool_use", ToolUse: &ToolUse{Name: "sql1", ToolUseID: "tu-1"}},
		{Type: "text", Text: "Here you go."},
	}})

	flat := h.forCompleteCall()
	require.Len(t, flat, 2)
	assert.Equal(t, RoleUser, flat[0].Role)
	assert.Equal(t, "summarize this", flat[0].Content)
	// Non-text blocks flatten to their text, which may be empty.
	assert.Equal(t, "Here you go.", flat[1].Content)
}

func TestMessageHistorySnapshotIsolation(t *testing.T) {
	h := &MessageHistory{}
	h.Add(NewTextMessage(RoleUser, "one"))
	snap := h.Snapshot()
	h.Add(NewTextMessage(RoleAssistant, "two"))
	assert.Len(t, snap, 1)
	assert.Equal(t, 2, h.Len())

	h.Reset()
	assert.Equal(t, 0, h.Len())
}

func TestMessageWireShape(t *testing.T) {
	data, err := json.Marshal(NewTextMessage(RoleUser, "hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[{"type":"text","text":"hi"}]}`, string(data))
}

func TestAPIHistoryRecordsAndCopies(t *testing.T) {
	h := &APIHistory{}
	header := http.Header{"Content-Type": []string{"application/json"}}
	body := []byte(`{"model":"claude-3-5-sonnet"}`)
	h.AddRequest(header, body)
	body[0] = 'X'
	header.Set("Content-Type", "text/plain")

	h.AddResponse(http.Header{}, &sse.Event{Event: "done", Data: "{}"})

	records := h.Snapshot()
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Request)
	assert.Equal(t, byte('{'), records[0].Request.Body[0])
	assert.Equal(t, "application/json", records[0].Request.Header.Get("Content-Type"))
	require.NotNil(t, records[1].Response)
	assert.Equal(t, "done", records[1].Response.Event.Event)
}
