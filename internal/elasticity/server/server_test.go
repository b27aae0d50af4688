package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"ensemble/internal/elasticity/orchestrator"
	"ensemble/internal/wiremsg"
	"ensemble/pkg/passhash"
)

func seedPool(t *testing.T, m *orchestrator.InMemory, ref orchestrator.Ref, pool orchestrator.Pool) {
	t.Helper()
	m.Seed(ref, pool)
}

func grow(n int) *int   { return &n }
func shrink(n int) *int { return &n }

func TestRequestAction_GrowWithinBoundsSucceeds(t *testing.T) {
	orch := orchestrator.NewInMemory()
	ref := orchestrator.Ref{Group: "compute.example.com", Version: "v1", Member: "pools", Namespace: "ns", Name: "p1"}
	seedPool(t, orch, ref, orchestrator.Pool{Size: 3, MinSize: 1, MaxSize: 10})
	srv := New(orch, "ns", nil, nil, nil)

	payload, _ := json.Marshal(wiremsg.ResizePayload{Version: "v1", Group: "compute.example.com", Grow: grow(2)})
	resp, err := srv.RequestAction(context.Background(), &wiremsg.ActionRequest{
		Member: "pools", Name: "p1", Action: "grow", Payload: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusSuccess, resp.Status)

	var out wiremsg.ResizeResponsePayload
	require.NoError(t, json.Unmarshal([]byte(resp.Payload), &out))
	assert.Equal(t, 5, out.Size)
	assert.False(t, out.Clamped)
}

func TestRequestAction_GrowBeyondMaxClamps(t *testing.T) {
	orch := orchestrator.NewInMemory()
	ref := orchestrator.Ref{Group: "compute.example.com", Version: "v1", Member: "pools", Namespace: "ns", Name: "p1"}
	seedPool(t, orch, ref, orchestrator.Pool{Size: 8, MinSize: 1, MaxSize: 10})
	srv := New(orch, "ns", nil, nil, nil)

	payload, _ := json.Marshal(wiremsg.ResizePayload{Version: "v1", Group: "compute.example.com", Grow: grow(5)})
	resp, err := srv.RequestAction(context.Background(), &wiremsg.ActionRequest{
		Member: "pools", Name: "p1", Action: "grow", Payload: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusSuccess, resp.Status, "clamp is preferred over reject")

	var out wiremsg.ResizeResponsePayload
	require.NoError(t, json.Unmarshal([]byte(resp.Payload), &out))
	assert.Equal(t, 10, out.Size)
	assert.True(t, out.Clamped)

	p, err := orch.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Size, "the patched size must reflect the clamp, not the raw request")
}

func TestRequestAction_ShrinkZeroMagnitudeRejected(t *testing.T) {
	orch := orchestrator.NewInMemory()
	ref := orchestrator.Ref{Group: "compute.example.com", Version: "v1", Member: "pools", Namespace: "ns", Name: "p1"}
	seedPool(t, orch, ref, orchestrator.Pool{Size: 5, MinSize: 1, MaxSize: 10})
	srv := New(orch, "ns", nil, nil, nil)

	payload, _ := json.Marshal(wiremsg.ResizePayload{Version: "v1", Group: "compute.example.com", Shrink: shrink(0)})
	resp, err := srv.RequestAction(context.Background(), &wiremsg.ActionRequest{
		Member: "pools", Name: "p1", Action: "shrink", Payload: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusError, resp.Status)
}

func TestRequestAction_UnsupportedActionRejected(t *testing.T) {
	orch := orchestrator.NewInMemory()
	srv := New(orch, "ns", nil, nil, nil)

	resp, err := srv.RequestAction(context.Background(), &wiremsg.ActionRequest{
		Member: "pools", Name: "p1", Action: "submit", Payload: "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusError, resp.Status)
}

func TestRequestAction_MissingVersionOrGroupRejected(t *testing.T) {
	orch := orchestrator.NewInMemory()
	srv := New(orch, "ns", nil, nil, nil)

	payload, _ := json.Marshal(wiremsg.ResizePayload{Grow: grow(1)})
	resp, err := srv.RequestAction(context.Background(), &wiremsg.ActionRequest{
		Member: "pools", Name: "p1", Action: "grow", Payload: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusError, resp.Status)
}

func TestRequestAction_RejectsMissingBearerCredentialWhenConfigured(t *testing.T) {
	orch := orchestrator.NewInMemory()
	cred := passhash.NewCredentialManager(&passhash.CredentialConfig{SecretKey: "s3cr3t", Issuer: "ensemble", TTL: time.Minute})
	srv := New(orch, "ns", nil, nil, cred)

	payload, _ := json.Marshal(wiremsg.ResizePayload{Version: "v1", Group: "compute.example.com", Grow: grow(1)})
	resp, err := srv.RequestAction(context.Background(), &wiremsg.ActionRequest{
		Member: "pools", Name: "p1", Action: "grow", Payload: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusError, resp.Status)
}

func TestRequestAction_AcceptsValidBearerCredential(t *testing.T) {
	orch := orchestrator.NewInMemory()
	ref := orchestrator.Ref{Group: "compute.example.com", Version: "v1", Member: "pools", Namespace: "ns", Name: "p1"}
	seedPool(t, orch, ref, orchestrator.Pool{Size: 3, MinSize: 1, MaxSize: 10})
	cred := passhash.NewCredentialManager(&passhash.CredentialConfig{SecretKey: "s3cr3t", Issuer: "ensemble", TTL: time.Minute})
	srv := New(orch, "ns", nil, nil, cred)

	token, err := cred.Generate("ensemble-client")
	require.NoError(t, err)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))

	payload, _ := json.Marshal(wiremsg.ResizePayload{Version: "v1", Group: "compute.example.com", Grow: grow(1)})
	resp, err := srv.RequestAction(ctx, &wiremsg.ActionRequest{
		Member: "pools", Name: "p1", Action: "grow", Payload: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusSuccess, resp.Status)
}

func TestRequestAction_UnknownPoolRejected(t *testing.T) {
	orch := orchestrator.NewInMemory()
	srv := New(orch, "ns", nil, nil, nil)

	payload, _ := json.Marshal(wiremsg.ResizePayload{Version: "v1", Group: "compute.example.com", Grow: grow(1)})
	resp, err := srv.RequestAction(context.Background(), &wiremsg.ActionRequest{
		Member: "pools", Name: "missing", Action: "grow", Payload: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, wiremsg.StatusError, resp.Status)
}
