package bolt

import (
	"context"
	"testing"
	"time"
)

func TestAckFailureRecoversToReady(t *testing.T) {
	client, closeFn := pipeSession(t, &fixedExecutor{})
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := client.Init(ctx, "boltcore-test/1.0", nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	stream, err := client.Run(ctx, "NOT A STATEMENT", nil, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for {
		if _, ok := stream.Next(ctx); !ok {
			break
		}
	}
	if client.State() != ClientFailed {
		t.Fatalf("expected Failed state, got %s", client.State())
	}

	if err := client.AckFailure(ctx); err != nil {
		t.Fatalf("ack failure: %v", err)
	}
	if client.State() != ClientReady {
		t.Fatalf("expected Ready after AckFailure, got %s", client.State())
	}
}

func TestAckFailureRejectedOutsideFailedState(t *testing.T) {
	client, closeFn := pipeSession(t, &fixedExecutor{})
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := client.Init(ctx, "boltcore-test/1.0", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := client.AckFailure(ctx); err == nil {
		t.Fatal("expected AckFailure to reject a session that is not Failed")
	}
}

func TestNextDrainsOnAbandonedContext(t *testing.T) {
	client, closeFn := pipeSession(t, &fixedExecutor{})
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := client.Init(ctx, "boltcore-test/1.0", nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	stream, err := client.Run(ctx, "RETURN 1 AS num", map[string]any{}, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	abandoned, abandonedCancel := context.WithCancel(context.Background())
	abandonedCancel()

	if _, ok := stream.Next(abandoned); ok {
		t.Fatal("expected no records once the caller's context is done")
	}
	if stream.Err() == nil {
		t.Fatal("expected a Cancelled error after abandoning the stream")
	}
	boltErr, isBoltErr := stream.Err().(*Error)
	if !isBoltErr || boltErr.Kind != ErrKindCancelled {
		t.Fatalf("expected ErrKindCancelled, got %v", stream.Err())
	}
	if client.State() != ClientReady {
		t.Fatalf("expected session restored to Ready after draining, got %s", client.State())
	}

	// The connection must still be usable for the next statement.
	nextStream, err := client.Run(ctx, "RETURN 1 AS num", map[string]any{}, false)
	if err != nil {
		t.Fatalf("run after abandon: %v", err)
	}
	var rows int
	for {
		resp, ok := nextStream.Next(ctx)
		if !ok {
			break
		}
		if !resp.EOF {
			rows++
		}
	}
	if err := nextStream.Err(); err != nil {
		t.Fatalf("stream after abandon: %v", err)
	}
	if rows != 1 {
		t.Fatalf("got %d rows after abandon, want 1", rows)
	}
}

func TestInitRejectedOutsideConnectedState(t *testing.T) {
	client, closeFn := pipeSession(t, &fixedExecutor{})
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := client.Init(ctx, "boltcore-test/1.0", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := client.Init(ctx, "boltcore-test/1.0", nil); err == nil {
		t.Fatal("expected second Init to be rejected")
	}
}
