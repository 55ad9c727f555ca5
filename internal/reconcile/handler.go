package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Trigger sources reported in log_source besides an event bridge detail type.
const (
	SourceAPIGateway     = "api_gateway"
	SourceWebApplication = "web_application"
	SourceUnknown        = "unknown"
)

// OpenFunc acquires a row source for one run. release is always non-nil when
// err is nil and must be called exactly once.
type OpenFunc func(ctx context.Context) (rows RowSource, release func(), err error)

// Report is the JSON body returned to the trigger.
type Report struct {
	DataConsistent *bool  `json:"data_consistent,omitempty"`
	Error          string `json:"error,omitempty"`
	LogSource      string `json:"log_source"`
}

// Handler runs reconciliations on demand.
type Handler struct {
	reconciler *Reconciler
	open       OpenFunc
	log        *zap.Logger
}

// NewHandler builds a handler acquiring its database access through open.
func NewHandler(reconciler *Reconciler, open OpenFunc, log *zap.Logger) *Handler {
	return &Handler{reconciler: reconciler, open: open, log: log}
}

// Run performs one reconciliation on behalf of source and returns the status
// code and report for it. Inconsistent data is a successful finding.
func (h *Handler) Run(ctx context.Context, source string) (int, Report) {
	log := h.log.With(zap.String("log_source", source))
	log.Info("consistency check invoked")

	rows, release, err := h.open(ctx)
	if err != nil {
		log.Error("open database", zap.Error(err))
		return http.StatusInternalServerError, Report{Error: fmt.Sprintf("Database error: %v", err), LogSource: source}
	}
	defer release()

	consistent, err := h.reconciler.Check(ctx, rows)
	if err != nil {
		log.Error("consistency check failed", zap.Error(err))
		return http.StatusInternalServerError, Report{Error: fmt.Sprintf("General error: %v", err), LogSource: source}
	}
	return http.StatusOK, Report{DataConsistent: &consistent, LogSource: source}
}

// Handle is the serverless entry point. It classifies the raw event, runs the
// check and wraps the report in a proxy response.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error) {
	status, report := h.Run(ctx, Source(event))

	body, err := json.Marshal(report)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// Source classifies the trigger of an invocation from its raw event.
func Source(event json.RawMessage) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(event, &envelope); err != nil {
		return SourceUnknown
	}

	if raw, ok := envelope["detail-type"]; ok {
		var detailType string
		if err := json.Unmarshal(raw, &detailType); err == nil && detailType != "" {
			return detailType
		}
		return string(raw)
	}
	if _, ok := envelope["httpMethod"]; ok {
		return SourceAPIGateway
	}
	if _, ok := envelope["requestContext"]; ok {
		return SourceWebApplication
	}
	return SourceUnknown
}
