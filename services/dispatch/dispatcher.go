// Package dispatch routes tool invocations, resource reads and prompt
// fetches to the booking engine.
//
// Tools live in a table keyed by name. Each entry pairs the tool's
// registered contract with a typed decoder, which turns validated values
// into a per-tool parameter record, and a typed handler. Parameters are
// always validated against the registry before the decoder runs, so no
// handler ever sees an unchecked field.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	recordsRepo "cabbooking/database/repository/records"
	"cabbooking/models"
	"cabbooking/services/booking"
	"cabbooking/services/prompts"
	"cabbooking/services/schema"
	"cabbooking/utils"

	"go.uber.org/zap"
)

// Call is one validated invocation as seen by a handler.
type Call struct {
	Invocation models.ToolInvocation
	// Sampler reaches the agent that made the call; nil when the session
	// cannot answer sampling requests.
	Sampler booking.Sampler
}

type toolFunc func(ctx context.Context, params schema.Values, call Call) (any, error)

// bind pairs a typed decoder with a typed handler.
func bind[P any](decode func(schema.Values) (P, error), handle func(ctx context.Context, p P, call Call) (any, error)) toolFunc {
	return func(ctx context.Context, params schema.Values, call Call) (any, error) {
		p, err := decode(params)
		if err != nil {
			return nil, err
		}
		return handle(ctx, p, call)
	}
}

// Dispatcher is safe for concurrent use once New returns.
type Dispatcher struct {
	registry *schema.Registry
	tools    map[string]toolFunc
	bookings booking.BookingService
	catalog  *prompts.Catalog
	records  recordsRepo.HistoricalRecordRepository
	logger   *zap.Logger
}

// New registers every tool, resource and prompt. records may be nil, in
// which case booking://history is empty.
func New(bookings booking.BookingService, catalog *prompts.Catalog, records recordsRepo.HistoricalRecordRepository, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		registry: schema.NewRegistry(),
		tools:    make(map[string]toolFunc),
		bookings: bookings,
		catalog:  catalog,
		records:  records,
		logger:   logger,
	}
	if err := d.registerTools(); err != nil {
		return nil, err
	}
	if err := d.registerResources(); err != nil {
		return nil, err
	}
	if err := d.registerPrompts(); err != nil {
		return nil, err
	}
	return d, nil
}

// Registry exposes the declared contracts for listing.
func (d *Dispatcher) Registry() *schema.Registry {
	return d.registry
}

func (d *Dispatcher) addTool(c schema.Contract, fn toolFunc) error {
	c.Kind = schema.KindTool
	if err := d.registry.Register(c); err != nil {
		return err
	}
	d.tools[c.Name] = fn
	return nil
}

// Dispatch validates inv against its tool contract and runs the tool.
// Every returned error is an *utils.AppError.
func (d *Dispatcher) Dispatch(ctx context.Context, inv models.ToolInvocation, sampler booking.Sampler) (result any, err error) {
	start := time.Now()
	log := d.logger.With(
		zap.String("tool", inv.Tool),
		zap.String("invocation_id", inv.InvocationID),
		zap.String("session_id", inv.SessionID),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Tool handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			result, err = nil, utils.NewInternalError(fmt.Errorf("panic: %v", r), "tool %s failed", inv.Tool)
		}
		fields := []zap.Field{zap.Duration("duration", time.Since(start))}
		if err != nil {
			fields = append(fields, zap.String("outcome", string(utils.KindOf(err))), zap.Error(err))
			log.Info("Tool invocation failed", fields...)
			return
		}
		fields = append(fields, zap.String("outcome", "ok"))
		log.Info("Tool invocation", fields...)
	}()

	fn, ok := d.tools[inv.Tool]
	if !ok {
		return nil, utils.NewNotFoundError("unknown tool %q", inv.Tool)
	}
	params, err := d.registry.Validate(schema.KindTool, inv.Tool, inv.Params)
	if err != nil {
		return nil, err
	}
	result, err = fn(ctx, params, Call{Invocation: inv, Sampler: sampler})
	if err != nil {
		return result, typed(err, inv.Tool)
	}
	return result, nil
}

// typed wraps errors that carry no kind as InternalErrors.
func typed(err error, tool string) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return utils.NewInternalError(err, "tool %s failed", tool)
}
