// Package server is the ensemble controller's control-plane endpoint
// (spec component C8): a gRPC server implementing internal/wiremsg's
// Elasticity service, backed by an internal/elasticity/orchestrator.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc/metadata"

	"ensemble/internal/elasticity/orchestrator"
	"ensemble/internal/wiremsg"
	"ensemble/pkg/audit"
	"ensemble/pkg/logger"
	"ensemble/pkg/metrics"
	"ensemble/pkg/passhash"
)

// Server implements wiremsg.ElasticityServer.
type Server struct {
	orch      orchestrator.Orchestrator
	namespace string
	audit     audit.Logger
	metrics   *metrics.Metrics
	cred      *passhash.CredentialManager
}

// New constructs a C8 endpoint. namespace is the fallback namespace
// used when a request doesn't resolve one of its own (spec.md §6:
// read from the mounted service-account file in Kubernetes mode, else
// "default"). auditLogger, metricsSink and cred may be nil; a nil cred
// disables bearer-credential verification (spec.md's Non-goals: auth
// beyond opaque transport credentials is out of scope, but when a
// CredentialManager is configured, every RequestAction call validates
// the "authorization: Bearer <token>" metadata C7 attaches).
func New(orch orchestrator.Orchestrator, namespace string, auditLogger audit.Logger, metricsSink *metrics.Metrics, cred *passhash.CredentialManager) *Server {
	return &Server{orch: orch, namespace: namespace, audit: auditLogger, metrics: metricsSink, cred: cred}
}

// RequestAction implements the single C7<->C8 RPC (spec §4.7).
func (s *Server) RequestAction(ctx context.Context, req *wiremsg.ActionRequest) (*wiremsg.Response, error) {
	if s.cred != nil {
		if err := s.authenticate(ctx); err != nil {
			return s.reject(ctx, req, 0, "invalid or missing bearer credential"), nil
		}
	}

	switch req.Action {
	case "grow", "shrink":
	default:
		return s.reject(ctx, req, 0, fmt.Sprintf("unsupported action %q", req.Action)), nil
	}

	var payload wiremsg.ResizePayload
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		logger.Log.Debug("resize: malformed payload", "error", err)
		return s.reject(ctx, req, 0, "payload is not valid JSON"), nil
	}
	if payload.Version == "" || payload.Group == "" {
		return s.reject(ctx, req, 0, "payload missing required version/group fields"), nil
	}

	ref := orchestrator.Ref{
		Group:     payload.Group,
		Version:   payload.Version,
		Member:    req.Member,
		Namespace: s.namespace,
		Name:      req.Name,
	}

	pool, err := s.orch.Get(ctx, ref)
	if err != nil {
		logger.Log.Warn("resize: compute pool lookup failed", "error", err, "group", ref.Group, "member", ref.Member, "name", ref.Name)
		return s.reject(ctx, req, 0, "compute pool not found"), nil
	}

	var delta int
	switch req.Action {
	case "grow":
		if payload.Grow == nil {
			return s.reject(ctx, req, 0, "grow action missing grow magnitude"), nil
		}
		delta = *payload.Grow
	case "shrink":
		if payload.Shrink == nil {
			return s.reject(ctx, req, 0, "shrink action missing shrink magnitude"), nil
		}
		if *payload.Shrink == 0 {
			return s.reject(ctx, req, 0, "shrink with zero magnitude is rejected"), nil
		}
		delta = -*payload.Shrink
	}

	requested := pool.Size + delta
	clamped := pool.Clamp(requested)
	wasClamped := clamped != requested
	if wasClamped {
		logger.Log.Warn("resize: clamped requested size", "requested", requested, "clamped", clamped, "min", pool.MinSize, "max", pool.MaxSize)
	}

	if err := s.orch.Patch(ctx, ref, clamped); err != nil {
		logger.Log.Error("resize: patch failed", "error", err)
		return s.reject(ctx, req, clamped, "patch failed"), nil
	}

	s.recordOutcome(req.Action, true)
	s.auditResize(ctx, req, audit.OutcomeSuccess, clamped)

	reason := ""
	if wasClamped {
		reason = fmt.Sprintf("clamped to [%d,%d]", pool.MinSize, pool.MaxSize)
	}
	return &wiremsg.Response{
		Status:  wiremsg.StatusSuccess,
		Payload: mustJSON(wiremsg.ResizeResponsePayload{Size: clamped, Clamped: wasClamped, Reason: reason}),
	}, nil
}

func (s *Server) authenticate(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return fmt.Errorf("no metadata on request")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return fmt.Errorf("missing authorization metadata")
	}
	token := strings.TrimPrefix(values[0], "Bearer ")
	_, err := s.cred.Validate(token)
	return err
}

func (s *Server) reject(ctx context.Context, req *wiremsg.ActionRequest, size int, reason string) *wiremsg.Response {
	s.recordOutcome(req.Action, false)
	s.auditResize(ctx, req, audit.OutcomeFailure, size)
	return &wiremsg.Response{
		Status:  wiremsg.StatusError,
		Payload: mustJSON(wiremsg.ResizeResponsePayload{Size: size, Reason: reason}),
	}
}

func (s *Server) recordOutcome(action string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordResizeRequest(action, success)
	}
}

func (s *Server) auditResize(ctx context.Context, req *wiremsg.ActionRequest, outcome audit.Outcome, size int) {
	if s.audit == nil {
		return
	}
	entry := audit.NewEntry().
		Service("ensemble-elasticity").
		Method("RequestAction").
		Action(audit.ActionResize).
		Outcome(outcome).
		Resource(req.Member, req.Name).
		Meta("action", req.Action).
		Meta("size", size).
		Build()
	if err := s.audit.Log(ctx, entry); err != nil {
		logger.Log.Warn("failed to log audit entry", "error", err)
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
