// Package bootstrap builds the one internal/sal.Store context a process
// needs from a parsed config.Config: the Index Gateway, Object Gateway,
// Metadata Cache, optional cluster invalidation transport, and optional GC
// queue. Both cmd/shoald (the daemon) and cmd/shoaldctl (the admin CLI)
// share this wiring instead of duplicating it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/cluster"
	"github.com/shoalstore/shoalstore/internal/config"
	"github.com/shoalstore/shoalstore/internal/gc"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/mcache"
	"github.com/shoalstore/shoalstore/internal/objstore"
	"github.com/shoalstore/shoalstore/internal/sal"
)

// Store bundles the built sal.Store with its lower-level dependencies, for
// callers (shoaldctl's stats reconcile) that need direct Index Gateway
// access alongside the Store's own operations.
type Store struct {
	Sal   *sal.Store
	Index *index.Gateway
}

// StartCluster controls whether Build may wire the gRPC cross-process cache
// invalidation transport. shoaldctl runs one-shot commands against a single
// process and has no peers to invalidate, so it always passes false;
// shoald passes true and leaves the decision to cfg.Cluster.Enabled.
type Options struct {
	// StartCluster, if true and cfg.Cluster.Enabled, starts the cluster
	// invalidation transport. Leave false for one-shot admin commands.
	StartCluster bool
	// StartGC, if true and cfg.GC.Enabled, starts the GC queue's worker
	// pool. Leave false for one-shot admin commands, which do not need
	// background workers for a process that exits immediately after.
	StartGC bool
}

// Build constructs a Store from cfg. The returned close func stops the GC
// queue and cluster transport (if started) and should run at the end of the
// caller's lifetime; it wraps sal.Store.Finalize.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Store, func() error, error) {
	idxBackend, err := buildIndexBackend(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: index backend: %w", err)
	}
	idxGW := index.NewGateway(idxBackend)

	gen, err := idgen.NewGenerator()
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: id generator: %w", err)
	}

	objBackend, err := buildObjectBackend(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: object backend: %w", err)
	}
	objGW := objstore.NewGateway(objBackend, objstore.DefaultCatalog(), idxGW, gen, 1)

	caches := mcache.NewStore(cfg.Cache.Capacity, cfg.Cache.Capacity, cfg.Cache.Capacity)

	var node *cluster.Node
	if opts.StartCluster && cfg.Cluster.Enabled {
		node = cluster.NewNode(cfg.Cluster.NodeID, cfg.Cluster.BindAddr, cfg.Cluster.Peers, caches)
		caches.SetBroadcaster(node)
		if err := node.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("bootstrap: cluster transport: %w", err)
		}
	}

	var gcQueue *gc.Queue
	if opts.StartGC && cfg.GC.Enabled {
		gcQueue = gc.NewQueue(objGW, cfg.GC.QueueDepth)
		gcQueue.Start(cfg.GC.Workers)
	}

	store := sal.New(idxGW, objGW, objstore.DefaultCatalog(), caches, node, gcQueue, catalog.NoQuota{}, sal.Config{
		UseMetadataCache: cfg.Cache.Enabled,
		GCEnabled:        cfg.GC.Enabled,
		TieredEnabled:    cfg.Multipart.Tiered,
	})

	return &Store{Sal: store, Index: idxGW}, store.Finalize, nil
}

func buildIndexBackend(cfg *config.Config) (index.Backend, error) {
	var backend index.Backend
	var err error
	switch cfg.Index.Backend {
	case "memory":
		backend = index.NewMemoryBackend()
	case "local":
		if mkErr := os.MkdirAll(cfg.Index.Local.RootDir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating index root dir: %w", mkErr)
		}
		backend, err = index.NewLocalBackend(cfg.Index.Local.RootDir)
	case "sqlite":
		backend, err = index.NewSQLiteBackend(cfg.Index.SQLite.Path)
	case "dynamodb":
		backend, err = index.NewDynamoDBBackend(context.Background(), cfg.Index.DynamoDB.Table, cfg.Index.DynamoDB.Region)
	case "firestore":
		backend, err = index.NewFirestoreBackend(context.Background(), cfg.Index.Firestore.ProjectID, cfg.Index.Firestore.Collection)
	case "cosmos":
		backend, err = index.NewCosmosBackend(&cfg.Index.Cosmos)
	default:
		return nil, fmt.Errorf("unknown index.backend %q", cfg.Index.Backend)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("index backend initialized", "backend", cfg.Index.Backend)
	return backend, nil
}

func buildObjectBackend(cfg *config.Config) (objstore.Backend, error) {
	var backend objstore.Backend
	var err error
	switch cfg.Object.Backend {
	case "memory":
		backend = objstore.NewMemoryBackend()
	case "local":
		if mkErr := os.MkdirAll(cfg.Object.Local.RootDir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating object root dir: %w", mkErr)
		}
		backend, err = objstore.NewLocalBackend(cfg.Object.Local.RootDir)
	case "aws":
		if cfg.Object.AWS.Bucket == "" {
			return nil, fmt.Errorf("object.aws.bucket is required when backend is 'aws'")
		}
		region := cfg.Object.AWS.Region
		if region == "" {
			region = "us-east-1"
		}
		backend, err = objstore.NewAWSBackend(context.Background(), cfg.Object.AWS.Bucket, region, cfg.Object.AWS.Prefix)
	case "gcp":
		if cfg.Object.GCP.Bucket == "" {
			return nil, fmt.Errorf("object.gcp.bucket is required when backend is 'gcp'")
		}
		backend, err = objstore.NewGCPBackend(context.Background(), cfg.Object.GCP.Bucket, cfg.Object.GCP.Prefix)
	case "azure":
		if cfg.Object.Azure.Container == "" {
			return nil, fmt.Errorf("object.azure.container is required when backend is 'azure'")
		}
		accountURL := cfg.Object.Azure.AccountURL
		if accountURL == "" {
			if cfg.Object.Azure.Account == "" {
				return nil, fmt.Errorf("object.azure.account or object.azure.account_url is required when backend is 'azure'")
			}
			accountURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.Object.Azure.Account)
		}
		backend, err = objstore.NewAzureBackend(accountURL, cfg.Object.Azure.Container, cfg.Object.Azure.Prefix)
	case "sqlite":
		backend, err = objstore.NewSQLiteBackend(cfg.Object.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown object.backend %q", cfg.Object.Backend)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("object backend initialized", "backend", cfg.Object.Backend)
	return backend, nil
}
