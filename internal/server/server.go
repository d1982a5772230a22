// Package server provides the HTTP server serving the chat streaming API and
// the embedded frontend.
package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/frontend"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/server/dto"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/store"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/tools"
)

// defaultUserID is used when the transport layer supplies no identity.
// Authentication is handled upstream of this server.
const defaultUserID = "default"

// Options configures a Server.
type Options struct {
	// Invoker produces the agent event stream for each request. Required.
	Invoker invoke.Invoker
	// Store persists session metadata. Required.
	Store store.SessionStore
	// History records event sequences for resumption. Optional.
	History *store.HistoryLog
	// Registry classifies the available tools. Default() when nil.
	Registry *tools.Registry
	// KeepAlive is the SSE idle interval; the relay default when zero.
	KeepAlive time.Duration
}

// Server is the HTTP server for the agent chat UI.
type Server struct {
	ctx       context.Context // server-lifetime context; outlives individual HTTP requests
	invoker   invoke.Invoker
	store     store.SessionStore
	history   *store.HistoryLog
	registry  *tools.Registry
	keepAlive time.Duration

	mu     sync.Mutex
	active map[string]*streamEntry // in-flight stream per session id
}

// New creates a new Server.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	registry := opts.Registry
	if registry == nil {
		registry = tools.Default()
	}
	return &Server{
		ctx:       ctx,
		invoker:   opts.Invoker,
		store:     opts.Store,
		history:   opts.History,
		registry:  registry,
		keepAlive: opts.KeepAlive,
		active:    make(map[string]*streamEntry),
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", handle(s.getHistory))
	mux.HandleFunc("GET /api/v1/tools", handle(s.listTools))

	// Serve embedded frontend with SPA fallback; the compress middleware
	// handles wire encoding for assets.
	dist, err := fs.Sub(frontend.Files, "dist")
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /", newStaticHandler(dist))

	// Middleware chain: logging → decompress → compress → mux.
	// Logging sees compressed bytes (accurate wire-size reporting).
	var inner http.Handler = mux
	inner = compressMiddleware(inner)
	inner = decompressMiddleware(inner)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		inner.ServeHTTP(rw, r)
		slog.InfoContext(r.Context(), "http",
			"m", r.Method,
			"p", r.URL.Path,
			"s", rw.status,
			"d", roundDuration(time.Since(start)),
			"b", rw.size,
		)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		// Use Background because the parent ctx is already cancelled.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx) //nolint:contextcheck // parent ctx is already cancelled at shutdown time
		shutdownCancel()
	}()
	slog.Info("listening", "addr", addr)
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return err
}

// Handler returns the API mux without static assets, for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", handle(s.getHistory))
	mux.HandleFunc("GET /api/v1/tools", handle(s.listTools))
	return mux
}

func (s *Server) getHistory(ctx context.Context, req *dto.HistoryReq) (*dto.HistoryResp, error) {
	if s.history == nil {
		return nil, dto.NotFound("history")
	}
	userID := req.UserID
	if userID == "" {
		userID = defaultUserID
	}
	events, err := s.history.Events(ctx, userID, req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dto.NotFound("session")
		}
		return nil, dto.InternalError("failed to load history").Wrap(err)
	}
	return &dto.HistoryResp{SessionID: req.SessionID, Events: events}, nil
}

func (s *Server) listTools(_ context.Context, _ *dto.EmptyReq) (*[]dto.ToolInfo, error) {
	list := s.registry.List()
	out := make([]dto.ToolInfo, len(list))
	for i, t := range list {
		out[i] = dto.ToolInfo{Name: t.Name, Kind: string(t.Kind), Description: t.Description}
	}
	return &out, nil
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher so SSE handlers can flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter so http.NewResponseController
// can discover interfaces like http.Flusher.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// roundDuration rounds d to 3 significant digits with minimum 1us precision.
func roundDuration(d time.Duration) time.Duration {
	for t := 100 * time.Second; t >= 100*time.Microsecond; t /= 10 {
		if d >= t {
			return d.Round(t / 100)
		}
	}
	return d.Round(time.Microsecond)
}
