// Package callbacks contains consumers of the structured event and
// message stream that render to a presentation surface.
package callbacks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mkessler/cortexagent/pkg/cortex"
)

// Console renders one conversation stream as plain text. Display
// flags switch individual block kinds off; everything is on by
// default.
type Console struct {
	out io.Writer

	DisplayToolUse     bool
	DisplayToolResults bool
	DisplayCharts      bool
	DisplayText        bool

	// SummarizeCharts narrates chart specs through the completion
	// endpoint when a summarizer is set.
	SummarizeCharts bool
	Summarizer      *cortex.CompletionHandler

	lastPrompt string
	streaming  bool
}

func NewConsole(out io.Writer) *Console {
	return &Console{
		out:                out,
		DisplayToolUse:     true,
		DisplayToolResults: true,
		DisplayCharts:      true,
		DisplayText:        true,
		SummarizeCharts:    true,
	}
}

// Handle renders one stream element. It expects well-formed content;
// malformed events surface as errors to the caller.
func (c *Console) Handle(ctx context.Context, r *cortex.Response) error {
	if r.Message != nil {
		return c.handleMessage(r.Message)
	}
	if r.Event == nil {
		return nil
	}
	if r.Event.Event == "done" {
		c.flushLine()
		return nil
	}
	blocks, err := cortex.DecodeDelta(r.Event)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := c.handleBlock(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) handleMessage(m *cortex.Message) error {
	if m.Role != cortex.RoleUser {
		return nil
	}
	if text := m.Text(); text != "" {
		c.lastPrompt = text
		fmt.Fprintf(c.out, "> %s\n", text)
		return nil
	}
	tr := m.ToolResults()
	if tr == nil || !c.DisplayToolResults {
		return nil
	}
	// Locally executed SQL result.
	for _, rc := range tr.Content {
		if rc.JSON == nil {
			continue
		}
		queryID, _ := rc.JSON["query_id"].(string)
		fmt.Fprintf(c.out, "[sql results] query %s\n", queryID)
		switch table := rc.JSON["result_set"].(type) {
		case *cortex.ResultTable:
			c.printTable(table)
		case map[string]any:
			// Reloaded from a replay file.
			encoded, err := json.Marshal(table)
			if err != nil {
				continue
			}
			decoded := &cortex.ResultTable{}
			if err := json.Unmarshal(encoded, decoded); err != nil {
				continue
			}
			c.printTable(decoded)
		}
	}
	return nil
}

func (c *Console) handleBlock(ctx context.Context, b cortex.ContentBlock) error {
	switch b.Type {
	case "text":
		if c.DisplayText {
			fmt.Fprint(c.out, b.Text)
			c.streaming = true
		}
	case "tool_use":
		if c.DisplayToolUse && b.ToolUse != nil {
			c.flushLine()
			fmt.Fprintf(c.out, "[tool use] %s\n", b.ToolUse.Name)
		}
	case "tool_results":
		if c.DisplayToolResults && b.ToolResults != nil {
			c.flushLine()
			c.printToolResults(b.ToolResults)
		}
	case "chart":
		if b.Chart == nil {
			return nil
		}
		c.flushLine()
		if c.DisplayCharts {
			fmt.Fprintf(c.out, "[chart] %s\n", b.Chart.ChartSpec)
		}
		if c.SummarizeCharts && c.Summarizer != nil {
			return c.summarizeChart(ctx, b.Chart.ChartSpec)
		}
	}
	return nil
}

func (c *Console) printToolResults(tr *cortex.ToolResults) {
	for _, rc := range tr.Content {
		if rc.Text != "" {
			fmt.Fprintf(c.out, "[tool results] %s\n", rc.Text)
			continue
		}
		if rc.JSON == nil {
			continue
		}
		if sql, ok := rc.JSON["sql"].(string); ok && sql != "" {
			fmt.Fprintf(c.out, "[generated sql] %s\n", sql)
			continue
		}
		if text, ok := rc.JSON["text"].(string); ok && text != "" {
			fmt.Fprintf(c.out, "[tool results] %s\n", text)
			continue
		}
		encoded, err := json.Marshal(rc.JSON)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.out, "[tool results] %s\n", encoded)
	}
}

func (c *Console) printTable(table *cortex.ResultTable) {
	w := tabwriter.NewWriter(c.out, 2, 4, 2, ' ', 0)
	for i, col := range table.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, row[col])
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

const chartSummaryPrompt = `You are given a vega-lite spec that has been generated based on this user question and the available warehouse data:
%s

Summarize what the user can see in the chart based on the question and the spec.
Only respond with the summary of the data and the plot. Don't explain you used the vega-lite spec for your answer.

The vega-lite spec:
%s`

func (c *Console) summarizeChart(ctx context.Context, chartSpec string) error {
	summary, err := c.Summarizer.Complete(ctx, fmt.Sprintf(chartSummaryPrompt, c.lastPrompt, chartSpec))
	if err != nil {
		return err
	}
	if summary != "" {
		fmt.Fprintf(c.out, "[chart summary] %s\n", summary)
	}
	return nil
}

func (c *Console) flushLine() {
	if c.streaming {
		fmt.Fprintln(c.out)
		c.streaming = false
	}
}
