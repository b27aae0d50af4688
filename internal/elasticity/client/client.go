// Package client is the ensemble controller's elasticity client (spec
// component C7): a typed wrapper exposing the single action_request
// RPC, dialed through pkg/client's retrying gRPC transport and coded
// with internal/wiremsg's hand-authored JSON contract.
package client

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"ensemble/internal/wiremsg"
	"ensemble/pkg/apperror"
	pkgclient "ensemble/pkg/client"
	"ensemble/pkg/telemetry"
)

// Config configures the dial target and optional opaque bearer
// credential (spec.md's Non-goals: "auth beyond opaque transport
// credentials").
type Config struct {
	Address      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	BearerToken  string
}

// Client is C7.
type Client struct {
	conn *grpc.ClientConn
	stub wiremsg.ElasticityClient
	cfg  Config
}

// Dial connects to the C8 endpoint.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := pkgclient.NewGRPCClient(ctx, pkgclient.ClientConfig{
		Address:      cfg.Address,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeElasticityUnavailable, "dial elasticity endpoint")
	}
	return &Client{conn: conn, stub: wiremsg.NewElasticityClient(conn), cfg: cfg}, nil
}

// ActionRequest issues spec.md's single C7 RPC method:
// action_request(member, name, action, payload) -> {status, payload?}.
func (c *Client) ActionRequest(ctx context.Context, member, name, action string, payload []byte) (status string, respPayload []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "elasticity.ActionRequest")
	defer span.End()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if c.cfg.BearerToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.stub.RequestAction(ctx, &wiremsg.ActionRequest{
		Member:  member,
		Name:    name,
		Action:  action,
		Payload: string(payload),
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return "", nil, apperror.Wrap(apperror.FromGRPC(err), apperror.CodeElasticityUnavailable, "elasticity RequestAction RPC failed")
	}
	return resp.Status, []byte(resp.Payload), nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
