package client

import (
	"context"
	"testing"
	"time"
)

func TestClientConfig(t *testing.T) {
	cfg := ClientConfig{
		Address:      "localhost:50051",
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}

	if cfg.Address != "localhost:50051" {
		t.Errorf("Address = %s, want localhost:50051", cfg.Address)
	}
}

func TestNewGRPCClient_DialsWithoutBlocking(t *testing.T) {
	conn, err := NewGRPCClient(context.Background(), ClientConfig{
		Address:      "localhost:1",
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryBackoff: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewGRPCClient returned error: %v", err)
	}
	defer conn.Close()

	if conn.Target() == "" {
		t.Error("expected a non-empty dial target")
	}
}
