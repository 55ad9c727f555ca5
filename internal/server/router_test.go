package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

type stubRegion struct {
	region string
	err    error
}

func (s stubRegion) Region(ctx context.Context) (string, error) { return s.region, s.err }

type stubRows struct{ rows []image.Metadata }

func (s stubRows) SelectAll(ctx context.Context) ([]image.Metadata, error) { return s.rows, nil }

type stubLive struct{}

func (stubLive) Extract(ctx context.Context, key string) (image.Metadata, error) {
	return image.Metadata{}, image.ErrNotFound.New("object %q", key)
}

func testDependencies(t *testing.T) Dependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	cfg := config.Config{
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
		Admin:   config.AdminConfig{TokenSecret: "operator-secret", TokenTTL: time.Minute},
	}
	open := func(ctx context.Context) (reconcile.RowSource, func(), error) {
		return stubRows{rows: []image.Metadata{{FileName: "cat.png"}}}, func() {}, nil
	}

	return Dependencies{
		Config:      cfg,
		Log:         log,
		DB:          stubPinger{},
		ObjectStore: stubPinger{},
		Region:      stubRegion{region: "eu-north-1"},
		Reconcile:   reconcile.NewHandler(reconcile.New(stubLive{}, log), open, log),
		Tokens:      auth.NewTokens(cfg.Admin),
	}
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthRoutes(t *testing.T) {
	deps := testDependencies(t)
	router := NewRouter(deps)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	deps.ObjectStore = stubPinger{err: errors.New("bucket missing")}
	rr = serve(NewRouter(deps), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "object_store")
}

func TestIndexReportsRegion(t *testing.T) {
	deps := testDependencies(t)

	rr := serve(NewRouter(deps), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"region":"eu-north-1"}`, rr.Body.String())

	deps.Region = stubRegion{err: errors.New("imds unavailable")}
	rr = serve(NewRouter(deps), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"region":"can't get region because of imds unavailable"}`, rr.Body.String())
}

func TestConsistencyCheckRequiresOperatorToken(t *testing.T) {
	deps := testDependencies(t)
	router := NewRouter(deps)

	rr := serve(router, httptest.NewRequest(http.MethodPost, "/admin/consistency-check", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, _, err := deps.Tokens.Issue("ops")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/consistency-check", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = serve(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var report reconcile.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.NotNil(t, report.DataConsistent)
	assert.False(t, *report.DataConsistent)
	assert.Equal(t, reconcile.SourceWebApplication, report.LogSource)
}

func TestAdminRoutesAbsentWithoutTokens(t *testing.T) {
	deps := testDependencies(t)
	deps.Tokens = nil

	rr := serve(NewRouter(deps), httptest.NewRequest(http.MethodPost, "/admin/consistency-check", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rr := serve(NewRouter(testDependencies(t)), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
