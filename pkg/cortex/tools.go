package cortex

import (
	"fmt"
	"slices"
	"strings"
)

const (
	ToolTypeSearch  = "cortex_search"
	ToolTypeAnalyst = "cortex_analyst_text_to_sql"
	ToolTypeSQLExec = "sql_exec"
	ToolTypeChart   = "data_to_chart"
)

var allowedToolTypes = []string{
	ToolTypeSearch,
	ToolTypeAnalyst,
	ToolTypeSQLExec,
	ToolTypeChart,
}

// Tool is a named capability the agent may invoke.
type Tool struct {
	Name string
	Type string
}

// NewTool validates the tool type, normalizing it to lowercase.
func NewTool(name, typ string) (Tool, error) {
	typ = strings.ToLower(typ)
	if !slices.Contains(allowedToolTypes, typ) {
		return Tool{}, fmt.Errorf("%w: %q must be one of %v", ErrInvalidToolType, typ, allowedToolTypes)
	}
	return Tool{Name: name, Type: typ}, nil
}

// NewSearchTool declares a Cortex Search tool.
func NewSearchTool(name string) Tool {
	return Tool{Name: name, Type: ToolTypeSearch}
}

// NewAnalystTool declares a text-to-SQL tool backed by Cortex Analyst.
func NewAnalystTool(name string) Tool {
	return Tool{Name: name, Type: ToolTypeAnalyst}
}

// NewSQLExecTool declares the SQL execution tool. The agent responds
// with this tool when a statement needs to run; execution itself
// happens client side.
func NewSQLExecTool(name string) Tool {
	return Tool{Name: name, Type: ToolTypeSQLExec}
}

// NewChartTool declares the data-to-chart tool producing vega-lite
// specs.
func NewChartTool(name string) Tool {
	return Tool{Name: name, Type: ToolTypeChart}
}

type wireToolSpec struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// wireTool is the serialized form: {"tool_spec": {"type", "name"}}.
type wireTool struct {
	ToolSpec wireToolSpec `json:"tool_spec"`
}

func (t Tool) toWire() wireTool {
	return wireTool{ToolSpec: wireToolSpec{Type: t.Type, Name: t.Name}}
}
