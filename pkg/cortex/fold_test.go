package cortex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/cortexagent/pkg/sse"
)

func deltaEvent(data string) *sse.Event {
	return &sse.Event{Event: eventMessageDelta, Data: data}
}

func doneEvent() *sse.Event {
	return &sse.Event{Event: eventDone, Data: "{}"}
}

func TestFoldAgentEventsConcatenatesText(t *testing.T) {
	events := []*sse.Event{
		deltaEvent(`{"delta":{"content":[{"type":"text","text":"Hello, "}]}}`),
		deltaEvent(`{"delta":{"content":[{"type":"text","text":"world"}]}}`),
		deltaEvent(`{"delta":{"content":[{"type":"text","text":"!"}]}}`),
		doneEvent(),
	}
	msg, err := foldAgentEvents(events)
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, msg.Role)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "Hello, world!", msg.Content[0].Text)
}

func TestFoldAgentEventsPassesThroughNonText(t *testing.T) {
	events := []*sse.Event{
		deltaEvent(`{"delta":{"content":[{"type":"text","text":"Running a query. "}]}}`),
		deltaEvent(`{"delta":{"content":[{"type":"tool_use","tool_use":{"name":"sql1","tool_use_id":"tu-1","input":{"query":"select 1"}}}]}}`),
		deltaEvent(`{"delta":{"content":[{"type":"chart","chart":{"chart_spec":"{}"}}]}}`),
		deltaEvent(`{"delta":{"content":[{"type":"text","text":"Done."}]}}`),
		doneEvent(),
	}
	msg, err := foldAgentEvents(events)
	require.NoError(t, err)
	// Non-text blocks keep arrival order; text flushes last.
	require.Len(t, msg.Content, 3)
	assert.Equal(t, "tool_use", msg.Content[0].Type)
	assert.Equal(t, "sql1", msg.Content[0].ToolUse.Name)
	assert.Equal(t, "chart", msg.Content[1].Type)
	assert.Equal(t, "text", msg.Content[2].Type)
	assert.Equal(t, "Running a query. Done.", msg.Content[2].Text)
}

func TestFoldAgentEventsEmptyStream(t *testing.T) {
	msg, err := foldAgentEvents([]*sse.Event{doneEvent()})
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
}

func TestFoldAgentEventsMalformedPayload(t *testing.T) {
	_, err := foldAgentEvents([]*sse.Event{deltaEvent(`{not json`)})
	assert.Error(t, err)
}

func TestDecodeDeltaIgnoresOtherEvents(t *testing.T) {
	content, err := DecodeDelta(doneEvent())
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestFoldCompletionEvents(t *testing.T) {
	events := []*sse.Event{
		{Event: sse.DefaultEvent, Data: `{"choices":[{"delta":{"content":"The chart "}}]}`},
		{Event: sse.DefaultEvent, Data: `{"choices":[{"delta":{"content":"shows growth."}}]}`},
		doneEvent(),
	}
	msg, err := foldCompletionEvents(events)
	require.NoError(t, err)
	assert.Equal(t, "The chart shows growth.", msg.Text())
}

func TestDecodeCompletionDeltaEmptyChoices(t *testing.T) {
	text, err := DecodeCompletionDelta(&sse.Event{Event: sse.DefaultEvent, Data: `{"choices":[]}`})
	require.NoError(t, err)
	assert.Empty(t, text)
}
