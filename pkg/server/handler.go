package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/observability"
	"github.com/strand-protocol/binn/pkg/protocol"
	"github.com/strand-protocol/binn/pkg/store"
	"github.com/strand-protocol/binn/pkg/transport"
)

// Handle processes one request frame and returns the response frame. It is
// what both transports call for every frame they receive.
func (s *Server) Handle(ctx context.Context, op byte, payload []byte) (byte, []byte) {
	return s.handle(ctx, s.log, op, payload)
}

func (s *Server) handle(ctx context.Context, log *zap.Logger, op byte, payload []byte) (byte, []byte) {
	start := time.Now()
	s.metrics.AddBytes(observability.DirectionIn, len(payload))

	rop, body, err := s.dispatch(ctx, op, payload)
	if err != nil {
		rop, body = s.errorFrame(log, op, err)
	}

	s.metrics.ObserveRequest(protocol.OpcodeName(op), time.Since(start))
	s.metrics.AddBytes(observability.DirectionOut, len(body))
	return rop, body
}

func (s *Server) dispatch(ctx context.Context, op byte, payload []byte) (byte, []byte, error) {
	switch op {
	case protocol.OpPut:
		return s.handlePut(ctx, payload)
	case protocol.OpGet:
		return s.handleGet(ctx, payload)
	case protocol.OpDelete:
		return s.handleDelete(ctx, payload)
	case protocol.OpList:
		return s.handleList(ctx, payload)
	case protocol.OpPing:
		return protocol.OpPong, nil, nil
	}
	return 0, nil, &protocol.RemoteError{
		Code:    protocol.ErrInvalidRequest,
		Message: fmt.Sprintf("unknown opcode 0x%02x", op),
	}
}

func (s *Server) handlePut(ctx context.Context, payload []byte) (byte, []byte, error) {
	var req protocol.PutRequest
	if err := req.Decode(payload); err != nil {
		return 0, nil, invalidRequest(err)
	}
	if err := s.ValidateDocument(req.Document); err != nil {
		return 0, nil, err
	}
	var err error
	if req.Create {
		err = s.store.Create(ctx, req.Key, req.Document)
	} else {
		err = s.store.Put(ctx, req.Key, req.Document)
	}
	if err != nil {
		return 0, nil, err
	}
	return protocol.OpOK, nil, nil
}

func (s *Server) handleGet(ctx context.Context, payload []byte) (byte, []byte, error) {
	var req protocol.KeyRequest
	if err := req.Decode(payload); err != nil {
		return 0, nil, invalidRequest(err)
	}
	doc, err := s.store.Get(ctx, req.Key)
	if err != nil {
		return 0, nil, err
	}
	body, err := (&protocol.ValueResponse{Key: req.Key, Document: doc}).Encode()
	if err != nil {
		return 0, nil, err
	}
	return protocol.OpValue, body, nil
}

func (s *Server) handleDelete(ctx context.Context, payload []byte) (byte, []byte, error) {
	var req protocol.KeyRequest
	if err := req.Decode(payload); err != nil {
		return 0, nil, invalidRequest(err)
	}
	if err := s.store.Delete(ctx, req.Key); err != nil {
		return 0, nil, err
	}
	return protocol.OpOK, nil, nil
}

func (s *Server) handleList(ctx context.Context, payload []byte) (byte, []byte, error) {
	var req protocol.ListRequest
	if err := req.Decode(payload); err != nil {
		return 0, nil, invalidRequest(err)
	}
	limit := int(req.Limit)
	if limit == 0 {
		limit = protocol.MaxListKeys
	}
	keys, err := s.store.List(ctx, req.Prefix, limit)
	if err != nil {
		return 0, nil, err
	}
	body, err := (&protocol.KeysResponse{Keys: keys}).Encode()
	if err != nil {
		return 0, nil, err
	}
	return protocol.OpKeys, body, nil
}

// ValidateDocument checks that doc holds exactly one value the server's
// decode options accept.
func (s *Server) ValidateDocument(doc []byte) error {
	if _, err := binn.Decode(doc, s.decodeOpts...); err != nil {
		return &protocol.RemoteError{Code: protocol.ErrInvalidDocument, Message: err.Error()}
	}
	return nil
}

func invalidRequest(err error) error {
	return &protocol.RemoteError{Code: protocol.ErrInvalidRequest, Message: err.Error()}
}

// errorFrame turns err into an OpError frame. Failures that are not the
// client's fault are logged and reported without detail.
func (s *Server) errorFrame(log *zap.Logger, op byte, err error) (byte, []byte) {
	msg := &protocol.ErrorMessage{Code: protocol.ErrInternal, Message: "internal error"}

	var re *protocol.RemoteError
	switch {
	case errors.As(err, &re):
		msg.Code, msg.Message = re.Code, re.Message
	case errors.Is(err, store.ErrNotFound):
		msg.Code, msg.Message = protocol.ErrNotFound, err.Error()
	case errors.Is(err, store.ErrAlreadyExists):
		msg.Code, msg.Message = protocol.ErrAlreadyExists, err.Error()
	case errors.Is(err, store.ErrInvalidKey):
		msg.Code, msg.Message = protocol.ErrInvalidRequest, err.Error()
	case errors.Is(err, protocol.ErrPayloadTooLarge), errors.Is(err, transport.ErrMessageTooLarge):
		msg.Code, msg.Message = protocol.ErrTooLarge, err.Error()
	default:
		log.Error("request failed", zap.String("opcode", protocol.OpcodeName(op)), zap.Error(err))
	}
	s.metrics.IncError(msg.Code.String())

	body, encErr := msg.Encode()
	if encErr != nil {
		// Only reachable if the message is not valid UTF-8.
		body, _ = (&protocol.ErrorMessage{Code: msg.Code}).Encode()
	}
	return protocol.OpError, body
}
