package cortex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/cortexagent/pkg/sse"
)

func sqlHandler(t *testing.T) *AgentHandler {
	t.Helper()
	cfg, err := NewConfiguration("")
	require.NoError(t, err)
	require.NoError(t, cfg.AddTool(NewSQLExecTool("sql1")))
	return NewAgentHandler(&Connection{AccountHost: "example.test"}, cfg, nil)
}

func TestSQLExecRequested(t *testing.T) {
	h := sqlHandler(t)
	events := []*sse.Event{
		deltaEvent(`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"sql1","tool_use_id":"tu-1","input":{"query":"select *\nfrom t"}}}]}}`),
		doneEvent(),
	}
	req, ok := h.sqlExecRequested(events)
	require.True(t, ok)
	assert.Equal(t, "sql1", req.toolName)
	assert.Equal(t, "tu-1", req.toolUseID)
	assert.Equal(t, "select * from t", req.statement)
}

func TestSQLExecRequestedNegatives(t *testing.T) {
	h := sqlHandler(t)
	cases := map[string][]*sse.Event{
		"too few events": {doneEvent()},
		"not a delta": {
			{Event: "metadata", Data: "{}"},
			doneEvent(),
		},
		"malformed payload": {
			deltaEvent(`{broken`),
			doneEvent(),
		},
		"empty content": {
			deltaEvent(`{"delta":{"content":[]}}`),
			doneEvent(),
		},
		"last block is text": {
			deltaEvent(`{"delta":{"content":[{"type":"text","text":"done"}]}}`),
			doneEvent(),
		},
		"undeclared tool": {
			deltaEvent(`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"other","tool_use_id":"tu-1","input":{"query":"select 1"}}}]}}`),
			doneEvent(),
		},
		"missing query": {
			deltaEvent(`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"sql1","tool_use_id":"tu-1","input":{}}}]}}`),
			doneEvent(),
		},
		"empty query": {
			deltaEvent(`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"sql1","tool_use_id":"tu-1","input":{"query":""}}}]}}`),
			doneEvent(),
		},
	}
	for name, events := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := h.sqlExecRequested(events)
			assert.False(t, ok)
		})
	}
}

func TestSQLExecRequestedChecksSecondToLast(t *testing.T) {
	h := sqlHandler(t)
	// The tool_use event is not directly followed by done, so it is not
	// a pending execution.
	events := []*sse.Event{
		deltaEvent(`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"sql1","tool_use_id":"tu-1","input":{"query":"select 1"}}}]}}`),
		deltaEvent(`{"delta":{"content":[{"type":"text","text":"never mind"}]}}`),
		doneEvent(),
	}
	_, ok := h.sqlExecRequested(events)
	assert.False(t, ok)
}
