package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/conduit-lang/graphql-lsp/internal/session"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// positionParams decodes the shared shape of completion and definition
// requests. Position is a pointer so a missing position is detected.
type positionParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     *protocol.Position              `json:"position"`
}

func (p positionParams) toSession() session.PositionParams {
	params := session.PositionParams{URI: string(p.TextDocument.URI)}
	if p.Position != nil {
		pos := fromProtocolPosition(*p.Position)
		params.Position = &pos
	}
	return params
}

// handleTextDocumentCompletion handles completion requests against snap
func (s *Server) handleTextDocumentCompletion(snap session.Snapshot) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		started := time.Now()

		var params positionParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			s.metrics.observe(req.Method(), "invalid", started)
			return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse completion params")
		}

		list, err := s.session.CompletionIn(ctx, snap, params.toSession())
		if err != nil {
			return s.replyRequestError(ctx, reply, req, started, err)
		}
		if list == nil {
			s.metrics.observe(req.Method(), "not_found", started)
			return reply(ctx, nil, nil)
		}

		s.metrics.observe(req.Method(), "ok", started)
		return reply(ctx, convertCompletionList(list), nil)
	}
}

// completionItemParams decodes a completion item echoed back by the client
// with its data in the shape this server sent it.
type completionItemParams struct {
	protocol.CompletionItem
	Data *tooling.CompletionData `json:"data,omitempty"`
}

// handleCompletionItemResolve attaches documentation to a completion item
func (s *Server) handleCompletionItemResolve(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	started := time.Now()

	var params completionItemParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse completion item")
	}

	kind, ok := completionKindFrom(params.Kind)
	if !ok || params.Data == nil {
		s.metrics.observe(req.Method(), "ok", started)
		return reply(ctx, params.CompletionItem, nil)
	}

	resolved, err := s.session.ResolveCompletionItem(ctx, tooling.CompletionItem{
		Label:      params.Label,
		Kind:       kind,
		Detail:     params.Detail,
		Deprecated: params.Deprecated,
		Data:       params.Data,
	})
	if err != nil {
		return s.replyRequestError(ctx, reply, req, started, err)
	}

	item := params.CompletionItem
	item.Data = params.Data
	item.Deprecated = resolved.Deprecated
	if resolved.Deprecated {
		item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
	}
	if resolved.Documentation != "" {
		item.Documentation = protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: resolved.Documentation,
		}
	}

	s.metrics.observe(req.Method(), "ok", started)
	return reply(ctx, item, nil)
}

// handleTextDocumentDefinition handles go-to-definition requests against snap
func (s *Server) handleTextDocumentDefinition(snap session.Snapshot) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		started := time.Now()

		var params positionParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			s.metrics.observe(req.Method(), "invalid", started)
			return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse definition params")
		}

		locations, err := s.session.DefinitionIn(ctx, snap, params.toSession())
		if err != nil {
			return s.replyRequestError(ctx, reply, req, started, err)
		}
		if locations == nil {
			s.metrics.observe(req.Method(), "not_found", started)
			return reply(ctx, nil, nil)
		}

		s.metrics.observe(req.Method(), "ok", started)
		return reply(ctx, convertLocations(locations), nil)
	}
}

// replyRequestError maps a session error onto a JSON-RPC error.
func (s *Server) replyRequestError(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, started time.Time, err error) error {
	if errors.Is(err, session.ErrMalformedRequest) {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, err.Error())
	}

	s.logger.Warn("Request failed", zap.String("method", req.Method()), zap.Error(err))
	s.metrics.observe(req.Method(), "error", started)
	return s.replyWithError(ctx, reply, jsonrpc2.InternalError, err.Error())
}
