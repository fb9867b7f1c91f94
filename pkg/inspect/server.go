// Package inspect implements a read-only introspection server.
//
// The server answers JSON-RPC 2.0 requests about committed render passes out
// of a history.Recorder. It never calls into the engine, so attaching an
// inspector cannot perturb rendering.
package inspect

import (
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/sourcegraph/jsonrpc2"

	"src.uiwiz.dev/pkg/history"
	"src.uiwiz.dev/pkg/logutil"
	"src.uiwiz.dev/pkg/wizard"
)

var logger = logutil.GetLogger("[inspect] ")

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
	errNoSnapshot = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidRequest, Message: "no committed pass yet"}
)

// Server answers introspection requests from recorded snapshots.
type Server struct {
	rec *history.Recorder
}

// NewServer returns a Server reading from rec.
func NewServer(rec *history.Recorder) *Server {
	return &Server{rec}
}

func (s *Server) handler() jsonrpc2.Handler {
	return routingHandler(map[string]method{
		"uiwiz/tree":    s.tree,
		"uiwiz/patches": s.patches,
		"uiwiz/stats":   s.stats,
		"uiwiz/history": s.history,
	})
}

type method func(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error)

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		var raw json.RawMessage
		if req.Params != nil {
			raw = *req.Params
		}
		return fn(ctx, conn, raw)
	})
}

// Serve answers requests on stream until the peer disconnects or ctx is
// canceled.
func (s *Server) Serve(ctx context.Context, stream io.ReadWriteCloser) {
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(stream, jsonrpc2.VSCodeObjectCodec{}),
		s.handler())
	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		conn.Close()
	}
}

// ListenAndServe accepts connections on addr and serves each until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Println("inspector connected:", conn.RemoteAddr())
		go s.Serve(ctx, conn)
	}
}

// Method handlers. All read committed state only.

func (s *Server) tree(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	snap, ok := s.rec.Latest()
	if !ok {
		return nil, errNoSnapshot
	}
	return snap.Tree, nil
}

func (s *Server) patches(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	snap, ok := s.rec.Latest()
	if !ok {
		return nil, errNoSnapshot
	}
	if snap.Patches == nil {
		return []string{}, nil
	}
	return snap.Patches, nil
}

func (s *Server) stats(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	snap, ok := s.rec.Latest()
	if !ok {
		return nil, errNoSnapshot
	}
	return snap.Stats, nil
}

type historyParams struct {
	From uint64 `json:"from"`
	Upto uint64 `json:"upto"`
}

func (s *Server) history(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var p historyParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &p); err != nil {
			return nil, errInvalidParams
		}
	}
	snaps := s.rec.Snapshots()
	out := []wizard.Snapshot{}
	for _, snap := range snaps {
		if snap.Seq < p.From {
			continue
		}
		if p.Upto != 0 && snap.Seq >= p.Upto {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
