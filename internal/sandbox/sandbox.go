package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/cordonlabs/cordon/internal/logging"
	"github.com/cordonlabs/cordon/internal/membrane"
	"github.com/cordonlabs/cordon/internal/shared/id"
)

var (
	// ErrSandboxClosed reports evaluation on a closed sandbox.
	ErrSandboxClosed = errors.New("sandbox is closed")
	// ErrTimeout reports an evaluation stopped by the configured deadline.
	ErrTimeout = errors.New("evaluation timeout exceeded")
)

// Sandbox joins a trusted outer runtime and an isolated inner runtime
// through a membrane environment. Inner source text evaluates with
// every outer global reachable only through membrane proxies.
type Sandbox struct {
	id     id.SandboxID
	cfg    Config
	outer  *goja.Runtime
	inner  *goja.Runtime
	env    *membrane.Environment
	log    *logging.Logger
	mu     sync.Mutex
	closed bool

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	// Interrupt channel
	interrupt chan struct{}
}

// Option configures a sandbox at construction time.
type Option func(*options)

type options struct {
	outer       *goja.Runtime
	distortions *membrane.Distortions
	endowments  map[string]goja.Value
	log         *logging.Logger
}

// WithOuterRuntime supplies a pre-populated trusted runtime instead of
// a fresh one.
func WithOuterRuntime(rt *goja.Runtime) Option {
	return func(o *options) { o.outer = rt }
}

// WithDistortions installs the substitution table applied to outer
// values crossing inward.
func WithDistortions(d *membrane.Distortions) Option {
	return func(o *options) { o.distortions = d }
}

// WithEndowments merges extra outer-realm values into the inner global
// scope, alongside the remapped outer globals.
func WithEndowments(e map[string]goja.Value) Option {
	return func(o *options) { o.endowments = e }
}

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) Option {
	return func(o *options) { o.log = log }
}

// New creates a sandbox: fresh runtimes, a membrane environment, and
// an inner global scope populated through the membrane.
func New(cfg Config, opts ...Option) (*Sandbox, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.NewNop()
	}

	outer := o.outer
	if outer == nil {
		outer = goja.New()
	}
	inner := goja.New()
	if cfg.MaxCallStackSize > 0 {
		inner.SetMaxCallStackSize(cfg.MaxCallStackSize)
	}

	envOpts := []membrane.Option{membrane.WithLogger(o.log.Logger)}
	if o.distortions != nil {
		envOpts = append(envOpts, membrane.WithDistortions(o.distortions))
	}
	env, err := membrane.NewEnvironment(outer, inner, envOpts...)
	if err != nil {
		return nil, fmt.Errorf("create membrane: %w", err)
	}

	s := &Sandbox{
		id:        id.NewSandboxID(),
		cfg:       cfg,
		outer:     outer,
		inner:     inner,
		env:       env,
		log:       o.log,
		console:   []LogEntry{},
		interrupt: make(chan struct{}),
	}

	if err := env.RemapGlobals(o.endowments); err != nil {
		return nil, fmt.Errorf("remap globals: %w", err)
	}
	if cfg.EnableConsole {
		if err := s.setupConsole(); err != nil {
			return nil, err
		}
	}

	s.log.Info("sandbox created",
		zap.String("sandbox_id", s.id.String()),
		zap.String("outer_realm", env.Outer().ID().String()),
		zap.String("inner_realm", env.Inner().ID().String()),
		zap.Duration("timeout", cfg.Timeout),
	)
	return s, nil
}

// ID returns the sandbox identity.
func (s *Sandbox) ID() id.SandboxID { return s.id }

// Environment exposes the membrane environment for direct value
// translation and distortion-aware wrapping.
func (s *Sandbox) Environment() *membrane.Environment { return s.env }

// Outer returns the trusted runtime.
func (s *Sandbox) Outer() *goja.Runtime { return s.outer }

// Evaluate runs source text inside the inner realm with timeout and
// interrupt handling. Any exception escaping evaluation has passed
// error identity correction; callers observe realm-safe data only.
func (s *Sandbox) Evaluate(ctx context.Context, src string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSandboxClosed
	}

	start := time.Now()
	result := &Result{Console: []LogEntry{}}

	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	// Clear stale interrupts before arming the watcher; the other
	// order lets a pre-cancelled context fire an interrupt that the
	// clear then wipes, leaving the evaluation unbounded.
	s.inner.ClearInterrupt()

	// inner is captured locally: the watcher can outlive this call and
	// must not race Close nilling the field.
	inner := s.inner
	interrupt := s.interrupt
	go func() {
		select {
		case <-timer.C:
			inner.Interrupt(ErrTimeout)
		case <-ctx.Done():
			inner.Interrupt(ctx.Err())
		case <-interrupt:
			return
		}
	}()

	s.consoleMu.Lock()
	s.console = []LogEntry{}
	s.consoleMu.Unlock()

	val, err := s.inner.RunString(src)

	// Stop interrupt goroutine
	close(s.interrupt)
	s.interrupt = make(chan struct{})

	result.Duration = time.Since(start)

	s.consoleMu.Lock()
	result.Console = append([]LogEntry{}, s.console...)
	s.consoleMu.Unlock()

	if err != nil {
		evalErr := s.correctError(ctx, err)
		result.Err = evalErr
		s.log.Debug("evaluation failed",
			zap.String("sandbox_id", s.id.String()),
			zap.Error(evalErr),
		)
		return result, evalErr
	}

	result.Value = exportValue(val)
	return result, nil
}

// correctError maps an inner evaluation failure to a realm-safe error.
func (s *Sandbox) correctError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
	if thrown, ok := membrane.AsThrown(err); ok {
		return thrown
	}
	return err
}

// setupConsole installs a console endowment on the inner global. The
// console is host-provided, not remapped, so sandbox output lands in
// structured log entries instead of the outer realm.
func (s *Sandbox) setupConsole() error {
	console := s.inner.NewObject()
	for _, level := range []string{"log", "warn", "error", "info"} {
		if err := console.Set(level, s.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	return s.inner.Set("console", console)
}

// makeConsoleFunc creates a console function
func (s *Sandbox) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		s.consoleMu.Lock()
		s.console = append(s.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		s.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// exportValue converts a goja value to a Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Close revokes every membrane proxy and releases the runtimes. The
// sandbox is unusable afterwards.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.env.Revoke()
	s.inner = nil
	s.outer = nil
	s.console = nil

	s.log.Info("sandbox closed", zap.String("sandbox_id", s.id.String()))
	return nil
}
