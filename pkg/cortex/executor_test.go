package cortex

import (
	"context"
	"fmt"
)

type fakeHandle struct {
	id    string
	table *ResultTable
}

func (h *fakeHandle) QueryID() string { return h.id }

func (h *fakeHandle) Done(ctx context.Context) (bool, error) { return true, nil }

func (h *fakeHandle) Result(ctx context.Context) (*ResultTable, error) { return h.table, nil }

// fakeExecutor records submitted statements and answers each from the
// respond callback, or with an empty table when it is unset.
type fakeExecutor struct {
	statements []string
	respond    func(statement string) (*ResultTable, error)
}

func (e *fakeExecutor) Submit(ctx context.Context, statement string) (QueryHandle, error) {
	e.statements = append(e.statements, statement)
	table := &ResultTable{}
	if e.respond != nil {
		var err error
		table, err = e.respond(statement)
		if err != nil {
			return nil, err
		}
	}
	return &fakeHandle{id: fmt.Sprintf("q-%d", len(e.statements)), table: table}, nil
}
