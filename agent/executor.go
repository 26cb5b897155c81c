package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/canvaslink/canvaslink-go/contracts"
)

// CommandHandler executes one named command against local application state
// and returns the value to relay back.
type CommandHandler interface {
	Handle(ctx context.Context, params json.RawMessage) (any, error)
}

// CommandHandlerFunc is a function adapter for CommandHandler.
type CommandHandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, params json.RawMessage) (any, error) {
	return f(ctx, params)
}

// Middleware processes a request around its handler.
type Middleware func(ctx context.Context, request contracts.Request, next CommandHandler) (any, error)

// Executor routes incoming requests to command handlers by name. Every
// executed request produces exactly one reply carrying the request's
// correlation id, whether the handler succeeded, failed, or was never found.
type Executor struct {
	mu         sync.RWMutex
	handlers   map[string]CommandHandler
	middleware []Middleware
	logger     *slog.Logger
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithExecutorMiddleware adds middleware, applied in registration order.
func WithExecutorMiddleware(middleware ...Middleware) ExecutorOption {
	return func(e *Executor) {
		e.middleware = append(e.middleware, middleware...)
	}
}

// NewExecutor creates an executor with an empty handler table.
func NewExecutor(options ...ExecutorOption) *Executor {
	e := &Executor{
		handlers: make(map[string]CommandHandler),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// RegisterHandler binds a handler to a command name. Each name can be bound
// once.
func (e *Executor) RegisterHandler(command string, handler CommandHandler) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.handlers[command]; exists {
		return fmt.Errorf("handler already registered for command %q", command)
	}
	e.handlers[command] = handler

	e.logger.Debug("registered command handler", "command", command)
	return nil
}

// RegisterHandlerFunc binds a handler function to a command name.
func (e *Executor) RegisterHandlerFunc(command string, handler CommandHandlerFunc) error {
	return e.RegisterHandler(command, handler)
}

// Commands lists the registered command names, sorted.
func (e *Executor) Commands() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	commands := make([]string, 0, len(e.handlers))
	for command := range e.handlers {
		commands = append(commands, command)
	}
	sort.Strings(commands)
	return commands
}

// Execute runs the request's handler and returns the single reply for it.
// Unknown commands, handler errors, and handler panics all become error
// replies; the correlation id is always carried through.
func (e *Executor) Execute(ctx context.Context, request contracts.Request) contracts.Reply {
	e.mu.RLock()
	handler, exists := e.handlers[request.Command]
	e.mu.RUnlock()

	if !exists {
		e.logger.Warn("unknown command", "command", request.Command, "requestId", request.ID)
		return contracts.NewErrorReply(request.ID, "unknown command: "+request.Command)
	}

	result, err := e.run(ctx, request, e.wrap(request, handler))
	if err != nil {
		return contracts.NewErrorReply(request.ID, err.Error())
	}

	reply, err := contracts.NewReply(request.ID, result)
	if err != nil {
		e.logger.Error("failed to encode command result",
			"command", request.Command,
			"requestId", request.ID,
			"error", err)
		return contracts.NewErrorReply(request.ID, err.Error())
	}
	return reply
}

// run invokes the handler chain, converting a panic into an error reply so a
// broken handler can never leave the request without a reply.
func (e *Executor) run(ctx context.Context, request contracts.Request, handler CommandHandler) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("command handler panicked",
				"command", request.Command,
				"requestId", request.ID,
				"panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return handler.Handle(ctx, request.Params)
}

// wrap builds the middleware chain around a handler, outermost first.
func (e *Executor) wrap(request contracts.Request, handler CommandHandler) CommandHandler {
	result := handler
	for i := len(e.middleware) - 1; i >= 0; i-- {
		mw := e.middleware[i]
		next := result
		result = CommandHandlerFunc(func(ctx context.Context, params json.RawMessage) (any, error) {
			return mw(ctx, request, next)
		})
	}
	return result
}

// LoggingMiddleware logs each command execution with its outcome and
// duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, request contracts.Request, next CommandHandler) (any, error) {
		start := time.Now()
		result, err := next.Handle(ctx, request.Params)
		if err != nil {
			logger.Warn("command failed",
				"command", request.Command,
				"requestId", request.ID,
				"duration", time.Since(start),
				"error", err)
			return nil, err
		}
		logger.Info("command executed",
			"command", request.Command,
			"requestId", request.ID,
			"duration", time.Since(start))
		return result, nil
	}
}
