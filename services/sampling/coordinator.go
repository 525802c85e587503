// Package sampling suspends an in-flight invocation while the calling agent
// is asked for a structured answer.
//
// Every outstanding request sits in a pending table keyed by its sampling
// id and indexed by session. A request ends exactly once: with the agent's
// answer, at its deadline, when the invocation's context is cancelled, or
// when its session closes.
package sampling

import (
	"context"
	"sync"
	"time"

	"cabbooking/models"
	"cabbooking/services/schema"
	"cabbooking/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds requests issued without a deadline.
const DefaultTimeout = 30 * time.Second

// Sender delivers a sampling request to the agent on the other end of a
// session.
type Sender interface {
	SendSampling(ctx context.Context, req models.SamplingRequest) error
}

type outcome struct {
	response map[string]any
	err      error
}

type pendingRequest struct {
	req  models.SamplingRequest
	done chan outcome
}

// Coordinator owns the pending-request table.
type Coordinator struct {
	mu       sync.Mutex
	pending  map[string]*pendingRequest
	sessions map[string]map[string]struct{}
	logger   *zap.Logger
}

func NewCoordinator(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		pending:  make(map[string]*pendingRequest),
		sessions: make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Request sends req through sender and waits for the agent. The answer is
// validated against expected before it is returned.
func (c *Coordinator) Request(ctx context.Context, sender Sender, req models.SamplingRequest, expected schema.Schema) (schema.Values, error) {
	if req.SamplingID == "" {
		req.SamplingID = uuid.NewString()
	}
	if req.Deadline.IsZero() {
		req.Deadline = time.Now().Add(DefaultTimeout)
	}
	req.ExpectedSchema = expected.JSONSchema()

	p := &pendingRequest{req: req, done: make(chan outcome, 1)}
	c.register(p)
	defer c.remove(req.SamplingID)

	log := c.logger.With(
		zap.String("sampling_id", req.SamplingID),
		zap.String("session_id", req.SessionID),
		zap.String("invocation_id", req.InvocationID),
	)

	timer := time.NewTimer(time.Until(req.Deadline))
	defer timer.Stop()

	if err := sender.SendSampling(ctx, req); err != nil {
		log.Warn("Failed to send sampling request", zap.Error(err))
		if ctx.Err() != nil {
			return nil, utils.NewCancelledError("sampling %s: %v", req.SamplingID, ctx.Err())
		}
		return nil, utils.NewInternalError(err, "send sampling request %s", req.SamplingID)
	}
	log.Debug("Sampling request sent", zap.Time("deadline", req.Deadline))

	select {
	case out := <-p.done:
		if out.err != nil {
			log.Info("Sampling request ended without an answer", zap.Error(out.err))
			return nil, out.err
		}
		values, err := expected.Validate(out.response)
		if err != nil {
			log.Info("Sampling answer does not match the expected schema", zap.Error(err))
			return nil, err
		}
		return values, nil
	case <-timer.C:
		log.Info("Sampling request timed out")
		return nil, utils.NewTimeoutError("sampling %s unanswered before %s", req.SamplingID, req.Deadline.Format(time.RFC3339))
	case <-ctx.Done():
		return nil, utils.NewCancelledError("sampling %s: %v", req.SamplingID, ctx.Err())
	}
}

// Resolve hands the agent's answer to the waiting request. Unknown ids,
// including answers arriving after the deadline, are NotFoundErrors.
func (c *Coordinator) Resolve(samplingID string, response map[string]any) error {
	return c.finish(samplingID, outcome{response: response})
}

// Reject ends the waiting request with err, for agents that decline.
func (c *Coordinator) Reject(samplingID string, err error) error {
	return c.finish(samplingID, outcome{err: err})
}

// CancelSession ends every pending request of sessionID with a
// CancelledError and reports how many there were.
func (c *Coordinator) CancelSession(sessionID string) int {
	c.mu.Lock()
	ids := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	var victims []*pendingRequest
	for id := range ids {
		if p, ok := c.pending[id]; ok {
			delete(c.pending, id)
			victims = append(victims, p)
		}
	}
	c.mu.Unlock()

	for _, p := range victims {
		p.done <- outcome{err: utils.NewCancelledError("session %s closed", sessionID)}
	}
	if len(victims) > 0 {
		c.logger.Info("Cancelled pending sampling requests", zap.String("session_id", sessionID), zap.Int("count", len(victims)))
	}
	return len(victims)
}

// Pending reports the number of outstanding requests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coordinator) register(p *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[p.req.SamplingID] = p
	ids := c.sessions[p.req.SessionID]
	if ids == nil {
		ids = make(map[string]struct{})
		c.sessions[p.req.SessionID] = ids
	}
	ids[p.req.SamplingID] = struct{}{}
}

func (c *Coordinator) take(samplingID string) *pendingRequest {
	p, ok := c.pending[samplingID]
	if !ok {
		return nil
	}
	delete(c.pending, samplingID)
	if ids := c.sessions[p.req.SessionID]; ids != nil {
		delete(ids, samplingID)
		if len(ids) == 0 {
			delete(c.sessions, p.req.SessionID)
		}
	}
	return p
}

func (c *Coordinator) remove(samplingID string) {
	c.mu.Lock()
	c.take(samplingID)
	c.mu.Unlock()
}

func (c *Coordinator) finish(samplingID string, out outcome) error {
	c.mu.Lock()
	p := c.take(samplingID)
	c.mu.Unlock()
	if p == nil {
		return utils.NewNotFoundError("no pending sampling request %q", samplingID)
	}
	p.done <- out
	return nil
}

// SessionSampler is a Coordinator bound to one invocation on one session.
type SessionSampler struct {
	coordinator  *Coordinator
	sender       Sender
	sessionID    string
	invocationID string
}

// ForInvocation binds c to the session and invocation a handler runs for.
func (c *Coordinator) ForInvocation(sender Sender, sessionID, invocationID string) *SessionSampler {
	return &SessionSampler{coordinator: c, sender: sender, sessionID: sessionID, invocationID: invocationID}
}

func (s *SessionSampler) Sample(ctx context.Context, prompt models.SamplingPrompt, expected schema.Schema, deadline time.Time) (schema.Values, error) {
	return s.coordinator.Request(ctx, s.sender, models.SamplingRequest{
		SessionID:    s.sessionID,
		InvocationID: s.invocationID,
		Prompt:       prompt,
		Deadline:     deadline,
	}, expected)
}
