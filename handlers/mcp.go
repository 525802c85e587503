package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"cabbooking/middleware"
	"cabbooking/models"
	"cabbooking/services/booking"
	"cabbooking/services/dispatch"
	"cabbooking/services/sampling"
	"cabbooking/services/schema"
	"cabbooking/utils"

	"go.uber.org/zap"
)

// codeResourceNotFound is the MCP error code for unknown resource URIs.
const codeResourceNotFound = -32002

const instructions = "Cab booking server. Use list_available_cabs before book_cab when the pickup is uncertain; " +
	"book_cab returns a booking whose status tells whether a cab was assigned."

// MCPServer serves the booking tools over MCP (newline-delimited
// JSON-RPC 2.0).
type MCPServer struct {
	Dispatcher  *dispatch.Dispatcher
	Coordinator *sampling.Coordinator
	// Limiter bounds tools/call per session; nil disables it.
	Limiter *middleware.RateLimiter
	Logger  *zap.Logger
	Name    string
	Version string
}

func (s *MCPServer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Serve runs one session over in/out until in reaches EOF. Cancelling ctx
// cancels the session's in-flight calls.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return newSession(ctx, s, out).run(in)
}

func (s *session) handleRequest(msg *message) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "ping":
		return s.writeResult(msg.ID, map[string]any{})
	}

	if !s.initialized.Load() {
		return s.writeError(msg.ID, codeInvalidRequest, "server not initialized (call initialize first)")
	}
	switch msg.Method {
	case "tools/list":
		return s.writeResult(msg.ID, s.toolsList())
	case "resources/list":
		return s.writeResult(msg.ID, s.resourcesList())
	case "resources/templates/list":
		return s.writeResult(msg.ID, s.resourceTemplatesList())
	case "prompts/list":
		return s.writeResult(msg.ID, s.promptsList())
	case "tools/call":
		s.spawn(msg, func(ctx context.Context) (any, *rpcError) { return s.callTool(ctx, msg) })
	case "resources/read":
		s.spawn(msg, func(ctx context.Context) (any, *rpcError) { return s.readResource(ctx, msg) })
	case "prompts/get":
		s.spawn(msg, func(ctx context.Context) (any, *rpcError) { return s.getPrompt(ctx, msg) })
	default:
		return s.writeError(msg.ID, codeMethodNotFound, "unknown method: "+msg.Method)
	}
	return nil
}

func (s *session) handleInitialize(msg *message) error {
	if len(msg.Params) == 0 {
		return s.writeError(msg.ID, codeInvalidParams, "params required for initialize")
	}
	var params initializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.writeError(msg.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}
	s.sampling.Store(params.Capabilities.Sampling != nil)
	s.initialized.Store(true)
	s.log.Info("Client connected",
		zap.String("client", params.ClientInfo.Name),
		zap.String("client_version", params.ClientInfo.Version),
		zap.String("protocol_version", params.ProtocolVersion),
		zap.Bool("sampling", s.sampling.Load()),
	)

	return s.writeResult(msg.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: serverCapabilities{
			Tools:     &listCapability{},
			Resources: &listCapability{},
			Prompts:   &listCapability{},
		},
		ServerInfo:   implementation{Name: s.server.Name, Version: s.server.Version},
		Instructions: instructions,
	})
}

func (s *session) toolsList() toolsListResult {
	contracts := s.server.Dispatcher.Registry().List(schema.KindTool)
	out := toolsListResult{Tools: make([]toolDescription, 0, len(contracts))}
	for _, c := range contracts {
		desc := toolDescription{
			Name:        c.Name,
			Title:       c.Title,
			Description: c.Description,
			InputSchema: c.Params.JSONSchema(),
			Annotations: &toolAnnotations{ReadOnlyHint: c.ReadOnly, IdempotentHint: c.Idempotent},
		}
		if c.Result != nil {
			desc.OutputSchema = c.Result.JSONSchema()
		}
		out.Tools = append(out.Tools, desc)
	}
	return out
}

func (s *session) resourcesList() resourcesListResult {
	out := resourcesListResult{Resources: []resourceDescription{}}
	for _, c := range s.server.Dispatcher.Registry().List(schema.KindResource) {
		if dispatch.IsTemplate(c) {
			continue
		}
		out.Resources = append(out.Resources, resourceDescription{
			URI: c.Name, Name: c.Title, Title: c.Title, Description: c.Description, MimeType: c.MimeType,
		})
	}
	return out
}

func (s *session) resourceTemplatesList() resourceTemplatesListResult {
	out := resourceTemplatesListResult{ResourceTemplates: []resourceTemplate{}}
	for _, c := range s.server.Dispatcher.Registry().List(schema.KindResource) {
		if !dispatch.IsTemplate(c) {
			continue
		}
		out.ResourceTemplates = append(out.ResourceTemplates, resourceTemplate{
			URITemplate: c.Name, Name: c.Title, Title: c.Title, Description: c.Description, MimeType: c.MimeType,
		})
	}
	return out
}

func (s *session) promptsList() promptsListResult {
	out := promptsListResult{Prompts: []promptDescription{}}
	for _, c := range s.server.Dispatcher.Registry().List(schema.KindPrompt) {
		desc := promptDescription{Name: c.Name, Title: c.Title, Description: c.Description, Arguments: []promptArgument{}}
		for _, f := range c.Params.Fields {
			desc.Arguments = append(desc.Arguments, promptArgument{Name: f.Name, Description: f.Description, Required: f.Required})
		}
		out.Prompts = append(out.Prompts, desc)
	}
	return out
}

func (s *session) callTool(ctx context.Context, msg *message) (any, *rpcError) {
	var params toolsCallParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid tools/call params"}
	}
	if !s.server.Limiter.Allow(s.id) {
		s.log.Warn("Rate limit exceeded", zap.String("tool", params.Name))
		return nil, &rpcError{Code: codeRateLimited, Message: "rate limit exceeded, try again later"}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	inv := models.ToolInvocation{
		Tool:         params.Name,
		Params:       params.Arguments,
		InvocationID: idString(msg.ID),
		SessionID:    s.id,
	}
	var sampler booking.Sampler
	if s.sampling.Load() {
		sampler = s.server.Coordinator.ForInvocation(s, s.id, inv.InvocationID)
	}
	result, err := s.server.Dispatcher.Dispatch(ctx, inv, sampler)
	return toolResult(result, err), nil
}

// toolResult renders a dispatch outcome as a tools/call result.
func toolResult(result any, err error) toolsCallResult {
	if err != nil {
		info := &errorInfo{Kind: string(utils.KindOf(err)), Message: err.Error()}
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			info.Message = appErr.Message
			info.Field = appErr.Field
		}
		return toolsCallResult{
			Content:   []contentBlock{{Type: "text", Text: err.Error()}},
			IsError:   true,
			ErrorInfo: info,
		}
	}
	data, mErr := json.MarshalIndent(result, "", "  ")
	if mErr != nil {
		return toolResult(nil, utils.NewInternalError(mErr, "encode tool result"))
	}
	return toolsCallResult{
		Content:           []contentBlock{{Type: "text", Text: string(data)}},
		StructuredContent: result,
	}
}

func (s *session) readResource(ctx context.Context, msg *message) (any, *rpcError) {
	var params resourcesReadParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.URI == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid resources/read params"}
	}
	content, err := s.server.Dispatcher.ReadResource(ctx, params.URI)
	if err != nil {
		return nil, rpcErrorFor(err, codeResourceNotFound)
	}
	data, err := json.MarshalIndent(content.Data, "", "  ")
	if err != nil {
		return nil, &rpcError{Code: codeInternalError, Message: "encode resource: " + err.Error()}
	}
	return resourcesReadResult{Contents: []resourceContents{{URI: content.URI, MimeType: content.MimeType, Text: string(data)}}}, nil
}

func (s *session) getPrompt(ctx context.Context, msg *message) (any, *rpcError) {
	var params promptsGetParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid prompts/get params"}
	}
	rendered, err := s.server.Dispatcher.GetPrompt(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, rpcErrorFor(err, codeInvalidParams)
	}
	return promptsGetResult{
		Description: rendered.Description,
		Messages:    []promptMessage{{Role: rendered.Role, Content: contentBlock{Type: "text", Text: rendered.Text}}},
	}, nil
}

// rpcErrorFor maps a typed error onto a JSON-RPC error. notFound is the
// code used for NotFoundErrors.
func rpcErrorFor(err error, notFound int) *rpcError {
	switch utils.KindOf(err) {
	case utils.KindNotFound:
		return &rpcError{Code: notFound, Message: err.Error()}
	case utils.KindValidation:
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: codeInternalError, Message: err.Error()}
	}
}
