package cortex

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (p *staticTokens) SessionToken(ctx context.Context) (string, error) {
	return p.token, p.err
}

func TestAuthorizePrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("access token wins", func(t *testing.T) {
		conn := &Connection{
			AccessToken:  "pat",
			Tokens:       &staticTokens{token: "minted"},
			SessionToken: "sess",
		}
		headers := http.Header{}
		require.NoError(t, conn.authorize(ctx, headers))
		assert.Equal(t, "Bearer pat", headers.Get("Authorization"))
	})

	t.Run("minted token", func(t *testing.T) {
		conn := &Connection{
			Tokens:       &staticTokens{token: "minted"},
			SessionToken: "sess",
		}
		headers := http.Header{}
		require.NoError(t, conn.authorize(ctx, headers))
		assert.Equal(t, "Bearer minted", headers.Get("Authorization"))
	})

	t.Run("session token", func(t *testing.T) {
		conn := &Connection{SessionToken: "sess"}
		headers := http.Header{}
		require.NoError(t, conn.authorize(ctx, headers))
		assert.Equal(t, `Snowflake Token="sess"`, headers.Get("Authorization"))
	})

	t.Run("no credentials", func(t *testing.T) {
		conn := &Connection{}
		headers := http.Header{}
		require.NoError(t, conn.authorize(ctx, headers))
		assert.Empty(t, headers.Get("Authorization"))
	})

	t.Run("mint failure", func(t *testing.T) {
		conn := &Connection{Tokens: &staticTokens{err: errors.New("expired key")}}
		err := conn.authorize(ctx, http.Header{})
		assert.ErrorContains(t, err, "mint session token")
	})
}

type slowHandle struct {
	fakeHandle
	polls int
}

func (h *slowHandle) Done(ctx context.Context) (bool, error) {
	h.polls++
	return h.polls >= 3, nil
}

type slowExecutor struct {
	handle *slowHandle
}

func (e *slowExecutor) Submit(ctx context.Context, statement string) (QueryHandle, error) {
	return e.handle, nil
}

func TestRunStatementPollsUntilDone(t *testing.T) {
	exec := &slowExecutor{handle: &slowHandle{
		fakeHandle: fakeHandle{id: "q-1", table: &ResultTable{Columns: []string{"A"}}},
	}}
	handle, table, err := runStatement(context.Background(), exec, "select 1")
	require.NoError(t, err)
	assert.Equal(t, "q-1", handle.QueryID())
	assert.Equal(t, []string{"A"}, table.Columns)
	assert.Equal(t, 3, exec.handle.polls)
}

func TestPollQueryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &slowHandle{}
	h.polls = -100
	err := pollQuery(ctx, h)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEndpointURL(t *testing.T) {
	conn := &Connection{AccountHost: "acct.snowflakecomputing.com"}
	assert.Equal(t,
		"https://acct.snowflakecomputing.com/api/v2/cortex/agent:run",
		conn.endpointURL(agentRunEndpoint))
}
