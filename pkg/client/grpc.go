package client

import (
	"context"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
)

// ClientConfig dials a single backend: the elasticity endpoint (C8)
// from C7, or any other internal gRPC peer that wants the same
// retry/backoff policy.
type ClientConfig struct {
	Address      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewGRPCClient dials Address with a bounded retry interceptor on
// both unary and streaming calls; Timeout bounds how long the initial
// connection attempt is allowed to sit idle before go-grpc's backoff
// gives up and reports Unavailable to the caller's own deadline.
func NewGRPCClient(_ context.Context, cfg ClientConfig) (*grpc.ClientConn, error) {
	opts := []grpc_retry.CallOption{
		grpc_retry.WithBackoff(grpc_retry.BackoffLinear(cfg.RetryBackoff)),
		grpc_retry.WithCodes(codes.Unavailable, codes.Aborted, codes.DeadlineExceeded),
		grpc_retry.WithMax(uint(cfg.MaxRetries)),
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			grpc_retry.UnaryClientInterceptor(opts...),
		),
		grpc.WithChainStreamInterceptor(
			grpc_retry.StreamClientInterceptor(opts...),
		),
	}
	if cfg.Timeout > 0 {
		dialOpts = append(dialOpts, grpc.WithConnectParams(grpc.ConnectParams{
			MinConnectTimeout: cfg.Timeout,
		}))
	}

	return grpc.NewClient(cfg.Address, dialOpts...)
}
