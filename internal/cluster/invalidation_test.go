package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []InvalidationMessage
}

func (h *recordingHandler) Invalidate(ctx context.Context, msg *InvalidationMessage) (*InvalidationAck, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, *msg)
	return &InvalidationAck{}, nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func TestBroadcastReachesPeer(t *testing.T) {
	peerHandler := &recordingHandler{}
	peer := NewNode("peer", "127.0.0.1:0", nil, peerHandler)

	lis, err := newListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	peer.mu.Lock()
	peer.server = grpc.NewServer()
	RegisterInvalidationServer(peer.server, peerHandler)
	peer.mu.Unlock()
	go peer.server.Serve(lis)
	defer peer.server.GracefulStop()

	origin := NewNode("origin", "127.0.0.1:0", []string{lis.Addr().String()}, &recordingHandler{})
	origin.Broadcast(context.Background(), "object", "bucket1/key1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if peerHandler.count() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := peerHandler.count(); got != 1 {
		t.Fatalf("expected 1 invalidation received, got %d", got)
	}
	if peerHandler.calls[0].Cache != "object" || peerHandler.calls[0].Key != "bucket1/key1" {
		t.Fatalf("unexpected invalidation payload: %+v", peerHandler.calls[0])
	}
}
