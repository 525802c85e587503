package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"cabbooking/models"
	"cabbooking/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errRequestCancelled marks a call the client cancelled; it gets no
// response.
var errRequestCancelled = errors.New("request cancelled by client")

// lockedEncoder serializes writes from the read loop and from every
// in-flight call onto the one output stream.
type lockedEncoder struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func (e *lockedEncoder) Encode(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encoder.Encode(v)
}

// session is one client connection. Calls run on their own goroutines;
// closing the session cancels them and every sampling request they wait on.
type session struct {
	id     string
	server *MCPServer
	enc    *lockedEncoder
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[string]context.CancelCauseFunc
	wg       sync.WaitGroup

	initialized atomic.Bool
	sampling    atomic.Bool
}

func newSession(ctx context.Context, server *MCPServer, out io.Writer) *session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	return &session{
		id:       id,
		server:   server,
		enc:      &lockedEncoder{encoder: json.NewEncoder(out)},
		log:      server.logger().With(zap.String("session_id", id)),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]context.CancelCauseFunc),
	}
}

// run reads newline-delimited JSON-RPC frames until EOF.
func (s *session) run(in io.Reader) error {
	defer s.close()
	s.log.Info("Session opened")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			if err := s.writeError(json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); err != nil {
				return err
			}
			continue
		}
		if msg.JSONRPC != "2.0" {
			if len(msg.ID) > 0 {
				if err := s.writeError(msg.ID, codeInvalidRequest, "unsupported JSON-RPC version"); err != nil {
					return err
				}
			}
			continue
		}

		var err error
		switch {
		case msg.isResponse():
			s.handleSamplingResponse(&msg)
		case msg.isNotification():
			s.handleNotification(&msg)
		case msg.Method == "":
			err = s.writeError(json.RawMessage("null"), codeInvalidRequest, "missing method")
		default:
			err = s.handleRequest(&msg)
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

// close cancels every in-flight call and waits for them to finish.
func (s *session) close() {
	s.cancel()
	s.server.Coordinator.CancelSession(s.id)
	s.wg.Wait()
	s.server.Limiter.Forget(s.id)
	s.log.Info("Session closed")
}

// spawn runs fn on its own goroutine, registered under the request id so
// notifications/cancelled can reach it.
func (s *session) spawn(msg *message, fn func(ctx context.Context) (any, *rpcError)) {
	key := idString(msg.ID)
	ctx, cancel := context.WithCancelCause(s.ctx)
	s.mu.Lock()
	s.inflight[key] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
			cancel(nil)
		}()

		result, rpcErr := fn(ctx)
		if errors.Is(context.Cause(ctx), errRequestCancelled) {
			return
		}
		var err error
		if rpcErr != nil {
			err = s.writeError(msg.ID, rpcErr.Code, rpcErr.Message)
		} else {
			err = s.writeResult(msg.ID, result)
		}
		if err != nil {
			s.log.Warn("Failed to write response", zap.String("request_id", key), zap.Error(err))
		}
	}()
}

func (s *session) handleNotification(msg *message) {
	switch msg.Method {
	case "notifications/initialized":
		s.log.Debug("Client initialized")
	case "notifications/cancelled":
		var params cancelledParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.log.Warn("Malformed cancel notification", zap.Error(err))
			return
		}
		key := idString(params.RequestID)
		s.mu.Lock()
		cancel, ok := s.inflight[key]
		s.mu.Unlock()
		if ok {
			s.log.Info("Client cancelled request", zap.String("request_id", key), zap.String("reason", params.Reason))
			cancel(errRequestCancelled)
		}
	default:
		s.log.Debug("Ignoring notification", zap.String("method", msg.Method))
	}
}

// handleSamplingResponse routes the client's answer to a
// sampling/createMessage request back to the waiting call.
func (s *session) handleSamplingResponse(msg *message) {
	id := idString(msg.ID)
	coordinator := s.server.Coordinator
	var err error
	switch {
	case msg.Error != nil:
		err = coordinator.Reject(id, utils.NewInternalError(errors.New(msg.Error.Message), "agent rejected sampling request"))
	default:
		var result createMessageResult
		if uErr := json.Unmarshal(msg.Result, &result); uErr != nil {
			err = coordinator.Reject(id, utils.NewValidationError("result", "malformed sampling result: %v", uErr))
			break
		}
		answer, pErr := decodeAnswer(result.Content.Text)
		if pErr != nil {
			err = coordinator.Reject(id, pErr)
			break
		}
		err = coordinator.Resolve(id, answer)
	}
	if err != nil {
		s.log.Debug("Dropped sampling response", zap.String("sampling_id", id), zap.Error(err))
	}
}

// decodeAnswer extracts the JSON object from a sampling answer, tolerating
// prose or code fences around it.
func decodeAnswer(text string) (map[string]any, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, utils.NewValidationError("response", "sampling answer holds no JSON object")
	}
	var answer map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &answer); err != nil {
		return nil, utils.NewValidationError("response", "sampling answer is not valid JSON: %v", err)
	}
	return answer, nil
}

// SendSampling writes a sampling/createMessage request for req.
func (s *session) SendSampling(ctx context.Context, req models.SamplingRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.enc.Encode(outbound{
		JSONRPC: "2.0",
		ID:      req.SamplingID,
		Method:  "sampling/createMessage",
		Params: createMessageParams{
			Messages: []samplingMessage{{
				Role:    "user",
				Content: contentBlock{Type: "text", Text: req.Prompt.Text},
			}},
			SystemPrompt: req.Prompt.System,
			MaxTokens:    req.Prompt.MaxTokens,
			Metadata: samplingMetadata{
				SamplingID:     req.SamplingID,
				InvocationID:   req.InvocationID,
				ExpectedSchema: req.ExpectedSchema,
			},
		},
	})
}

func (s *session) writeResult(id json.RawMessage, result any) error {
	return s.enc.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *session) writeError(id json.RawMessage, code int, msg string) error {
	return s.enc.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

// idString renders a JSON-RPC id as plain text: strings unquoted, numbers
// as written.
func idString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strconv.Quote(string(raw))
}
