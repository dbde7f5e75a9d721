package cortex

import (
	"encoding/json"
	"strings"

	"github.com/mkessler/cortexagent/pkg/sse"
)

// sqlRequest is a detected pending SQL execution.
type sqlRequest struct {
	toolName  string
	toolUseID string
	statement string
}

// sqlExecRequested probes the event preceding the terminal done event
// for a tool_use block naming a declared sql_exec tool. Detection is
// best effort by contract: any parse failure means no execution was
// requested, never an error.
func (h *AgentHandler) sqlExecRequested(events []*sse.Event) (sqlRequest, bool) {
	if len(events) < 2 {
		return sqlRequest{}, false
	}
	ev := events[len(events)-2]
	if ev.Event != eventMessageDelta {
		return sqlRequest{}, false
	}
	var delta messageDelta
	if err := json.Unmarshal([]byte(ev.Data), &delta); err != nil {
		return sqlRequest{}, false
	}
	content := delta.Delta.Content
	if len(content) == 0 {
		return sqlRequest{}, false
	}
	last := content[len(content)-1]
	if last.Type != string(blockTypeToolUse) || last.ToolUse == nil {
		return sqlRequest{}, false
	}
	declared := false
	for _, t := range h.config.sqlExecTools() {
		if t.Name == last.ToolUse.Name {
			declared = true
			break
		}
	}
	if !declared {
		return sqlRequest{}, false
	}
	query, ok := last.ToolUse.Input["query"].(string)
	if !ok || query == "" {
		return sqlRequest{}, false
	}
	return sqlRequest{
		toolName:  last.ToolUse.Name,
		toolUseID: last.ToolUse.ToolUseID,
		statement: strings.ReplaceAll(query, "\n", " "),
	}, true
}
