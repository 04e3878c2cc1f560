package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	apiHandler "github.com/fastygo/classtrack/api/handler"
	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/internal/infrastructure/monitor"
	"github.com/fastygo/classtrack/internal/middleware"
	"github.com/fastygo/classtrack/internal/router"
	"github.com/fastygo/classtrack/internal/services"
	"github.com/fastygo/classtrack/pkg/httpcontext"
	"github.com/fastygo/classtrack/repository"
	"github.com/fastygo/classtrack/usecase/cascade"
	historyUC "github.com/fastygo/classtrack/usecase/history"
	progressUC "github.com/fastygo/classtrack/usecase/progress"
	statusUC "github.com/fastygo/classtrack/usecase/status"
)

const JWTSecret = "test-secret"

// Server is the HTTP API served over an in-memory listener.
type Server struct {
	Store    *Store
	Clock    *Clock
	Listener *fasthttputil.InmemoryListener
}

type serverOptions struct {
	catalog repository.CatalogRepository
}

type ServerOption func(*serverOptions)

// WithCatalog serves the API over catalog instead of the store's catalog.
func WithCatalog(catalog repository.CatalogRepository) ServerOption {
	return func(o *serverOptions) { o.catalog = catalog }
}

// NewTestServer wires the API over store and serves it until the test completes.
func NewTestServer(t testing.TB, store *Store, clock *Clock, opts ...ServerOption) *Server {
	t.Helper()

	options := serverOptions{catalog: store.Catalog}
	for _, opt := range opts {
		opt(&options)
	}

	progress := progressUC.New(options.catalog, store.Completions, nil, nil)
	engine := cascade.NewEngine(store.Completions, historyUC.NewArchiver(nil), clock.Now, nil)
	status := statusUC.New(options.catalog, store.Completions, engine, progress, clock.Now, nil)
	scanner, err := services.NewExpiryScanner(store.Completions, services.ScannerConfig{}, clock.Now, nil)
	if err != nil {
		t.Fatalf("creating expiry scanner: %v", err)
	}
	adapter := httpcontext.NewAdapter(5 * time.Second)

	r := router.New(router.Handlers{
		Status:   apiHandler.NewStatusHandler(status, domain.NewTTL(0), adapter, nil),
		Progress: apiHandler.NewProgressHandler(progress, adapter, nil),
		History:  apiHandler.NewHistoryHandler(historyUC.New(store.History, 0), adapter, nil),
		Health:   apiHandler.NewHealthHandler(monitor.New(time.Minute, nil), scanner, adapter, nil),
	}, middleware.JWTAuth(JWTSecret, nil))

	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: r.Handler}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	return &Server{Store: store, Clock: clock, Listener: ln}
}

// Dial connects to the in-memory listener; it satisfies fasthttp.DialFunc.
func (s *Server) Dial(string) (net.Conn, error) {
	return s.Listener.Dial()
}

// Token issues a bearer token for the user.
func Token(t testing.TB, userID string, classIDs ...string) string {
	t.Helper()
	token, err := middleware.IssueToken(middleware.Claims{UserID: userID, ClassIDs: classIDs}, JWTSecret)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}
