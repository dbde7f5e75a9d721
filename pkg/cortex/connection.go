package cortex

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	agentRunEndpoint = "/api/v2/cortex/agent:run"
	completeEndpoint = "/api/v2/cortex/inference:complete"
)

// pollInterval is the cadence for checking an in-flight SQL query.
const pollInterval = 250 * time.Millisecond

// TokenProvider mints a bearer token for the REST API, typically from
// key-pair credentials or a live warehouse session.
type TokenProvider interface {
	SessionToken(ctx context.Context) (string, error)
}

// QueryHandle tracks an asynchronously executing SQL statement.
type QueryHandle interface {
	QueryID() string
	// Done reports whether the query has finished.
	Done(ctx context.Context) (bool, error)
	// Result returns the tabular result of a finished query.
	Result(ctx context.Context) (*ResultTable, error)
}

// SQLExecutor submits SQL statements to the warehouse for
// asynchronous execution.
type SQLExecutor interface {
	Submit(ctx context.Context, statement string) (QueryHandle, error)
}

// Connection holds the account host, authentication material and the
// warehouse collaborator for one conversation session.
//
// Exactly one authorization scheme is used per request, by precedence:
// AccessToken, then a token minted by Tokens, then SessionToken.
type Connection struct {
	// AccountHost is the account's API host, e.g.
	// myorg-myaccount.snowflakecomputing.com.
	AccountHost string

	// AccessToken is an explicit bearer token (personal access token
	// or pre-generated JWT).
	AccessToken string

	// Tokens mints session tokens on demand.
	Tokens TokenProvider

	// SessionToken is an externally supplied session token, sent with
	// the Snowflake Token scheme.
	SessionToken string

	// Executor runs SQL statements the agent asks to execute. May be
	// nil if no sql_exec tool is declared.
	Executor SQLExecutor

	// HTTPClient overrides the transport. The default client has no
	// timeout: agent streams can be long-lived, and teardown is the
	// caller's context's job.
	HTTPClient *http.Client
}

func (c *Connection) endpointURL(endpoint string) string {
	return fmt.Sprintf("https://%s%s", c.AccountHost, endpoint)
}

func (c *Connection) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{}
}

func (c *Connection) authorize(ctx context.Context, headers http.Header) error {
	switch {
	case c.AccessToken != "":
		headers.Set("Authorization", "Bearer "+c.AccessToken)
	case c.Tokens != nil:
		token, err := c.Tokens.SessionToken(ctx)
		if err != nil {
			return fmt.Errorf("mint session token: %w", err)
		}
		headers.Set("Authorization", "Bearer "+token)
	case c.SessionToken != "":
		headers.Set("Authorization", fmt.Sprintf("Snowflake Token=%q", c.SessionToken))
	}
	return nil
}

// pollQuery waits for a submitted query to finish without busy
// spinning.
func pollQuery(ctx context.Context, handle QueryHandle) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		done, err := handle.Done(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runStatement submits a statement and blocks until its result is
// available.
func runStatement(ctx context.Context, exec SQLExecutor, statement string) (QueryHandle, *ResultTable, error) {
	handle, err := exec.Submit(ctx, statement)
	if err != nil {
		return nil, nil, err
	}
	if err := pollQuery(ctx, handle); err != nil {
		return nil, nil, err
	}
	table, err := handle.Result(ctx)
	if err != nil {
		return nil, nil, err
	}
	return handle, table, nil
}
