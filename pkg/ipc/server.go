package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/rexliu/folio/pkg/core"
)

// HandlerFunc processes RPC params and returns a result or structured error.
type HandlerFunc func(context.Context, json.RawMessage) (any, *Error)

// StreamHandlerFunc opens a stream of encoded results. Each payload received
// from the channel is sent to the client as its own response frame until the
// channel closes or the connection context ends.
type StreamHandlerFunc func(context.Context, json.RawMessage) (<-chan json.RawMessage, *Error)

// Server listens for IPC requests over Unix sockets.
type Server struct {
	ln       net.Listener
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	streams  map[string]StreamHandlerFunc
	closed   bool
	logger   *slog.Logger
}

// NewServer constructs an IPC server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handlers: make(map[string]HandlerFunc),
		streams:  make(map[string]StreamHandlerFunc),
		logger:   logger.With("component", "ipc"),
	}
}

// Register installs a handler for a method.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// RegisterStream installs a streaming handler for a method. A streaming
// request holds its connection until the stream ends.
func (s *Server) RegisterStream(method string, handler StreamHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[method] = handler
}

// Start begins accepting connections on endpoint.
func (s *Server) Start(ctx context.Context, endpoint string) error {
	if s == nil {
		return errors.New("nil server")
	}
	ln, err := net.Listen("unix", endpoint)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	go s.acceptLoop(ctx)
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return
			}
			s.logger.Warn("accept error", "err", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for {
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.writeError(conn, req.ID, core.NewTraceID(), CodeInvalidRequest, "invalid json", nil)
			continue
		}
		traceID := core.NewTraceID()
		s.logger.Debug("ipc request", "method", req.Type, "id", req.ID, "traceId", traceID)

		if stream := s.lookupStream(req.Type); stream != nil {
			s.serveStream(ctx, conn, req, traceID, stream)
			return
		}
		handler := s.lookupHandler(req.Type)
		if handler == nil {
			s.writeError(conn, req.ID, traceID, CodeInvalidRequest, "unknown method", map[string]any{"method": req.Type})
			continue
		}
		result, rpcErr := handler(ctx, req.Params)
		if err := s.respond(conn, req.ID, traceID, result, rpcErr); err != nil {
			return
		}
	}
}

// serveStream writes one frame per value until the stream ends or the
// client goes away.
func (s *Server) serveStream(ctx context.Context, conn net.Conn, req Request, traceID string, handler StreamHandlerFunc) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// A read returning means the client hung up or sent more than we expect.
	go func() {
		_, _ = readFrame(conn)
		cancel()
	}()

	values, rpcErr := handler(ctx, req.Params)
	if rpcErr != nil {
		_ = s.respond(conn, req.ID, traceID, nil, rpcErr)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-values:
			if !ok {
				return
			}
			if err := s.respond(conn, req.ID, traceID, v, nil); err != nil {
				s.logger.Debug("stream closed", "method", req.Type, "traceId", traceID, "err", err)
				return
			}
		}
	}
}

func (s *Server) respond(conn net.Conn, id, traceID string, result any, rpcErr *Error) error {
	resp := Response{ID: id, TraceID: traceID}
	if rpcErr != nil {
		resp.Error = rpcErr
		return s.writeResponse(conn, resp)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(conn, id, traceID, CodeInternal, err.Error(), nil)
		return nil
	}
	resp.OK = true
	resp.Result = raw
	return s.writeResponse(conn, resp)
}

func (s *Server) lookupHandler(method string) HandlerFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[method]
}

func (s *Server) lookupStream(method string) StreamHandlerFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streams[method]
}

func (s *Server) writeResponse(conn net.Conn, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFrame(conn, payload)
}

func (s *Server) writeError(conn net.Conn, id, traceID, code, msg string, details map[string]any) {
	resp := Response{ID: id, TraceID: traceID}
	resp.Error = &Error{Code: code, Message: msg, Details: details}
	_ = s.writeResponse(conn, resp)
}

// Stop shuts down the listener.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Errorf helps build protocol errors.
func Errorf(code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}
