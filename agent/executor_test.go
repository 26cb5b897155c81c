package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaslink/canvaslink-go/contracts"
)

func quietExecutor(options ...ExecutorOption) *Executor {
	opts := append([]ExecutorOption{
		WithExecutorLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, options...)
	return NewExecutor(opts...)
}

func TestRegisterHandler(t *testing.T) {
	echo := CommandHandlerFunc(func(_ context.Context, params json.RawMessage) (any, error) {
		return params, nil
	})

	t.Run("registers by name", func(t *testing.T) {
		e := quietExecutor()

		require.NoError(t, e.RegisterHandler("ping", echo))

		assert.Equal(t, []string{"ping"}, e.Commands())
	})

	t.Run("rejects empty command", func(t *testing.T) {
		e := quietExecutor()
		assert.Error(t, e.RegisterHandler("", echo))
	})

	t.Run("rejects nil handler", func(t *testing.T) {
		e := quietExecutor()
		assert.Error(t, e.RegisterHandler("ping", nil))
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		e := quietExecutor()
		require.NoError(t, e.RegisterHandler("ping", echo))

		err := e.RegisterHandler("ping", echo)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("lists commands sorted", func(t *testing.T) {
		e := quietExecutor()
		require.NoError(t, e.RegisterHandler("zeta", echo))
		require.NoError(t, e.RegisterHandler("alpha", echo))

		assert.Equal(t, []string{"alpha", "zeta"}, e.Commands())
	})
}

func TestExecute(t *testing.T) {
	t.Run("returns the handler result under the request id", func(t *testing.T) {
		e := quietExecutor()
		require.NoError(t, e.RegisterHandlerFunc("ping", func(_ context.Context, _ json.RawMessage) (any, error) {
			return map[string]any{"pong": true}, nil
		}))

		reply := e.Execute(context.Background(), contracts.Request{ID: "req-1", Command: "ping"})

		assert.Equal(t, "req-1", reply.ID)
		assert.False(t, reply.IsError())
		assert.JSONEq(t, `{"pong":true}`, string(reply.Result))
	})

	t.Run("passes params through untouched", func(t *testing.T) {
		e := quietExecutor()
		var seen json.RawMessage
		require.NoError(t, e.RegisterHandlerFunc("inspect", func(_ context.Context, params json.RawMessage) (any, error) {
			seen = params
			return nil, nil
		}))

		e.Execute(context.Background(), contracts.Request{
			ID:      "req-1",
			Command: "inspect",
			Params:  json.RawMessage(`{"x":1.5}`),
		})

		assert.JSONEq(t, `{"x":1.5}`, string(seen))
	})

	t.Run("unknown command yields an error reply", func(t *testing.T) {
		e := quietExecutor()

		reply := e.Execute(context.Background(), contracts.Request{ID: "req-9", Command: "nope"})

		assert.Equal(t, "req-9", reply.ID)
		assert.True(t, reply.IsError())
		assert.Contains(t, reply.Error, "unknown command")
		assert.Contains(t, reply.Error, "nope")
		assert.Empty(t, reply.Result)
	})

	t.Run("handler errors surface verbatim", func(t *testing.T) {
		e := quietExecutor()
		require.NoError(t, e.RegisterHandlerFunc("fail", func(_ context.Context, _ json.RawMessage) (any, error) {
			return nil, errors.New("font not loaded")
		}))

		reply := e.Execute(context.Background(), contracts.Request{ID: "req-2", Command: "fail"})

		assert.True(t, reply.IsError())
		assert.Equal(t, "font not loaded", reply.Error)
	})

	t.Run("handler panics become error replies", func(t *testing.T) {
		e := quietExecutor()
		require.NoError(t, e.RegisterHandlerFunc("boom", func(_ context.Context, _ json.RawMessage) (any, error) {
			panic("unexpected state")
		}))

		reply := e.Execute(context.Background(), contracts.Request{ID: "req-3", Command: "boom"})

		assert.Equal(t, "req-3", reply.ID)
		assert.True(t, reply.IsError())
		assert.Contains(t, reply.Error, "internal error")
		assert.Contains(t, reply.Error, "unexpected state")
	})

	t.Run("unencodable results become error replies", func(t *testing.T) {
		e := quietExecutor()
		require.NoError(t, e.RegisterHandlerFunc("bad", func(_ context.Context, _ json.RawMessage) (any, error) {
			return make(chan int), nil
		}))

		reply := e.Execute(context.Background(), contracts.Request{ID: "req-4", Command: "bad"})

		assert.Equal(t, "req-4", reply.ID)
		assert.True(t, reply.IsError())
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("wraps handlers in registration order", func(t *testing.T) {
		var trace []string
		record := func(name string) Middleware {
			return func(ctx context.Context, request contracts.Request, next CommandHandler) (any, error) {
				trace = append(trace, name+"-before")
				result, err := next.Handle(ctx, request.Params)
				trace = append(trace, name+"-after")
				return result, err
			}
		}

		e := quietExecutor(WithExecutorMiddleware(record("outer"), record("inner")))
		require.NoError(t, e.RegisterHandlerFunc("ping", func(_ context.Context, _ json.RawMessage) (any, error) {
			trace = append(trace, "handler")
			return nil, nil
		}))

		e.Execute(context.Background(), contracts.Request{ID: "req-1", Command: "ping"})

		assert.Equal(t, []string{"outer-before", "inner-before", "handler", "inner-after", "outer-after"}, trace)
	})

	t.Run("logging middleware passes results through", func(t *testing.T) {
		e := quietExecutor(WithExecutorMiddleware(
			LoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))),
		))
		require.NoError(t, e.RegisterHandlerFunc("ping", func(_ context.Context, _ json.RawMessage) (any, error) {
			return map[string]int{"n": 7}, nil
		}))

		reply := e.Execute(context.Background(), contracts.Request{ID: "req-1", Command: "ping"})

		assert.False(t, reply.IsError())
		assert.JSONEq(t, `{"n":7}`, string(reply.Result))
	})

	t.Run("logging middleware passes errors through", func(t *testing.T) {
		e := quietExecutor(WithExecutorMiddleware(
			LoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))),
		))
		require.NoError(t, e.RegisterHandlerFunc("fail", func(_ context.Context, _ json.RawMessage) (any, error) {
			return nil, errors.New("nope")
		}))

		reply := e.Execute(context.Background(), contracts.Request{ID: "req-1", Command: "fail"})

		assert.True(t, reply.IsError())
		assert.Equal(t, "nope", reply.Error)
	})
}
