// Package cluster fans metadata-cache invalidations out to peer processes
// over gRPC, so a PUT/DELETE handled by one shoalstore process promptly
// evicts the stale entry from every other process's cache (spec §6, C3).
// Invalidations are advisory: a dropped or delayed message leaves a peer
// serving a stale cache entry. The cache has no TTL or version check of its
// own, so such an entry stays until it is evicted, overwritten or
// invalidated again.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InvalidationMessage names the cache and key to evict. Cache is one of the
// metadata cache's three partitions ("object", "user", "bucket-instance").
type InvalidationMessage struct {
	Cache  string `json:"cache"`
	Key    string `json:"key"`
	NodeID string `json:"node_id"`
}

// InvalidationAck is the empty acknowledgement returned by a peer.
type InvalidationAck struct{}

// jsonCodec implements encoding.Codec by marshaling with encoding/json
// instead of protobuf wire format. Registered under the name "json" so
// Node can select it per-call with grpc.CallContentSubtype, avoiding the
// need for a protoc-generated message type for a single advisory RPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return "json" }

const (
	invalidationServiceName = "shoalstore.cluster.Invalidation"
	invalidationMethodName  = "/shoalstore.cluster.Invalidation/Invalidate"
)

// InvalidationHandler is implemented by whatever wants to receive remote
// invalidations; internal/mcache.Cache satisfies it.
type InvalidationHandler interface {
	Invalidate(ctx context.Context, msg *InvalidationMessage) (*InvalidationAck, error)
}

func invalidateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InvalidationMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvalidationHandler).Invalidate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invalidationMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InvalidationHandler).Invalidate(ctx, req.(*InvalidationMessage))
	}
	return interceptor(ctx, in, info, handler)
}

var invalidationServiceDesc = grpc.ServiceDesc{
	ServiceName: invalidationServiceName,
	HandlerType: (*InvalidationHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invalidate", Handler: invalidateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/cluster/invalidation.go",
}

// RegisterInvalidationServer registers srv's Invalidate method on s.
func RegisterInvalidationServer(s *grpc.Server, srv InvalidationHandler) {
	s.RegisterService(&invalidationServiceDesc, srv)
}

func callInvalidate(ctx context.Context, cc grpc.ClientConnInterface, msg *InvalidationMessage) (*InvalidationAck, error) {
	out := new(InvalidationAck)
	err := cc.Invoke(ctx, invalidationMethodName, msg, out, grpc.CallContentSubtype(jsonCodec{}.Name()))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Node manages a gRPC server bound to BindAddr that receives invalidations
// from peers, and fans locally originated invalidations out to Peers. It
// replaces the consensus-coordination role the teacher's raft stub never
// implemented: invalidation fan-out needs no agreement protocol, only
// best-effort delivery.
type Node struct {
	NodeID   string
	BindAddr string
	Peers    []string

	handler InvalidationHandler

	mu      sync.Mutex
	server  *grpc.Server
	clients map[string]*grpc.ClientConn
}

// NewNode creates a Node that will serve srv's invalidations to its peers.
func NewNode(nodeID, bindAddr string, peers []string, srv InvalidationHandler) *Node {
	return &Node{
		NodeID:   nodeID,
		BindAddr: bindAddr,
		Peers:    peers,
		handler:  srv,
		clients:  make(map[string]*grpc.ClientConn),
	}
}

// Start opens the gRPC listener and begins serving in the background.
func (n *Node) Start(ctx context.Context) error {
	lis, err := newListener(n.BindAddr)
	if err != nil {
		return fmt.Errorf("cluster: binding %s: %w", n.BindAddr, err)
	}

	n.mu.Lock()
	n.server = grpc.NewServer()
	RegisterInvalidationServer(n.server, n.handler)
	n.mu.Unlock()

	slog.Info("cluster invalidation node starting", "node_id", n.NodeID, "bind_addr", n.BindAddr, "peers", n.Peers)

	go func() {
		if err := n.server.Serve(lis); err != nil {
			slog.Error("cluster invalidation server stopped", "node_id", n.NodeID, "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the gRPC server and closes peer connections.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	slog.Info("cluster invalidation node stopping", "node_id", n.NodeID)
	if n.server != nil {
		n.server.GracefulStop()
	}
	for addr, cc := range n.clients {
		if err := cc.Close(); err != nil {
			slog.Warn("closing cluster peer connection", "peer", addr, "error", err)
		}
	}
	return nil
}

// Broadcast fans an invalidation out to every configured peer. Failures to
// reach individual peers are logged, not returned: invalidation is
// advisory and a stuck peer must not block the caller's write path.
func (n *Node) Broadcast(ctx context.Context, cache, key string) {
	msg := &InvalidationMessage{Cache: cache, Key: key, NodeID: n.NodeID}
	for _, addr := range n.Peers {
		cc, err := n.clientFor(addr)
		if err != nil {
			slog.Warn("cluster invalidation dial failed", "peer", addr, "error", err)
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err = callInvalidate(callCtx, cc, msg)
		cancel()
		if err != nil && status.Code(err) != codes.Unavailable {
			slog.Warn("cluster invalidation call failed", "peer", addr, "cache", cache, "key", key, "error", err)
		}
	}
}

func (n *Node) clientFor(addr string) (*grpc.ClientConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cc, ok := n.clients[addr]; ok {
		return cc, nil
	}
	cc, err := dial(addr)
	if err != nil {
		return nil, err
	}
	n.clients[addr] = cc
	return cc, nil
}
