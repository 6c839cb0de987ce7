// Package main is shoaldctl, the shoald administration CLI: bootstrap,
// user/bucket CRUD against the storage abstraction layer, and an offline
// stats-reconciliation scan.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shoalstore/shoalstore/internal/bootstrap"
	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/config"
	"github.com/shoalstore/shoalstore/internal/objstore"
	"github.com/shoalstore/shoalstore/internal/serialization"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var rc int
	switch os.Args[1] {
	case "bootstrap":
		rc = runBootstrap(os.Args[2:])
	case "user":
		rc = runUser(os.Args[2:])
	case "bucket":
		rc = runBucket(os.Args[2:])
	case "stats":
		rc = runStats(os.Args[2:])
	case "export":
		rc = runExport(os.Args[2:])
	case "import":
		rc = runImport(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		rc = 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		printUsage()
		rc = 1
	}
	os.Exit(rc)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: shoaldctl <command> [flags]

commands:
  bootstrap                 verify backend connectivity and materialize global indices
  user create               create a user and register an access key
  user show                 print a user record
  user rm                   remove a user and its access keys/emails
  bucket create              create a bucket
  bucket show                print a bucket record
  bucket rm                  remove an empty bucket
  bucket ls                  list a user's buckets
  stats reconcile             recompute a bucket's stats header from its object index
  export                     dump the SQLite index backend's entries to JSON
  import                     load JSON index entries into the SQLite index backend`)
}

func loadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}

func runBootstrap(args []string) int {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	configPath := fs.String("config", "shoalstore.yaml", "path to configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	// The Index Gateway's backends materialize a named index lazily on its
	// first write (spec's "created on demand"), so this command's real job
	// is to fail fast against a misconfigured backend before the daemon
	// starts, not to pre-create anything.
	_, closeStore, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		return 1
	}
	defer closeStore()

	fmt.Println("backends reachable, global indices ready")
	return 0
}

func runUser(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: shoaldctl user <create|show|rm> [flags]")
		return 1
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("user "+sub, flag.ExitOnError)
	configPath := fs.String("config", "shoalstore.yaml", "path to configuration file")
	userID := fs.String("user-id", "", "user id")
	accessKey := fs.String("access-key", "", "access key to register (create only)")
	secret := fs.String("secret", "", "secret key for the access key (create only)")
	email := fs.String("email", "", "email to register (create only)")
	fs.Parse(rest)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user-id is required")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	built, closeStore, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		return 1
	}
	defer closeStore()
	ctx := context.Background()

	switch sub {
	case "create":
		rec := &catalog.UserRecord{UserID: *userID, Tag: *userID}
		if err := built.Sal.CreateUser(ctx, rec); err != nil {
			fmt.Fprintf(os.Stderr, "create user failed: %v\n", err)
			return 1
		}
		if *accessKey != "" {
			if err := built.Sal.RegisterAccessKey(ctx, *accessKey, &catalog.AccessKeyRecord{UserID: *userID, Secret: *secret}); err != nil {
				fmt.Fprintf(os.Stderr, "register access key failed: %v\n", err)
				return 1
			}
		}
		if *email != "" {
			if err := built.Sal.RegisterEmail(ctx, *email, *userID); err != nil {
				fmt.Fprintf(os.Stderr, "register email failed: %v\n", err)
				return 1
			}
		}
		fmt.Printf("created user %s\n", *userID)
	case "show":
		rec, err := built.Sal.GetUser(ctx, *userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get user failed: %v\n", err)
			return 1
		}
		fmt.Printf("user_id=%s tag=%s version=%d attributes=%v\n", rec.UserID, rec.Tag, rec.Version, rec.Attributes)
	case "rm":
		if err := built.Sal.RemoveUser(ctx, *userID); err != nil {
			fmt.Fprintf(os.Stderr, "remove user failed: %v\n", err)
			return 1
		}
		fmt.Printf("removed user %s\n", *userID)
	default:
		fmt.Fprintf(os.Stderr, "unknown user subcommand %q\n", sub)
		return 1
	}
	return 0
}

func runBucket(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: shoaldctl bucket <create|show|rm|ls> [flags]")
		return 1
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("bucket "+sub, flag.ExitOnError)
	configPath := fs.String("config", "shoalstore.yaml", "path to configuration file")
	tenant := fs.String("tenant", "", "tenant id")
	bucket := fs.String("bucket", "", "bucket name")
	owner := fs.String("owner", "", "owner user id")
	fs.Parse(rest)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	built, closeStore, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		return 1
	}
	defer closeStore()
	ctx := context.Background()

	switch sub {
	case "create":
		if *bucket == "" || *owner == "" {
			fmt.Fprintln(os.Stderr, "-bucket and -owner are required")
			return 1
		}
		rec := &catalog.BucketRecord{Tenant: *tenant, Bucket: *bucket, Owner: *owner, Mtime: time.Now()}
		if err := built.Sal.CreateBucket(ctx, rec); err != nil {
			fmt.Fprintf(os.Stderr, "create bucket failed: %v\n", err)
			return 1
		}
		fmt.Printf("created bucket %s\n", catalog.TenantBucketKey(*tenant, *bucket))
	case "show":
		if *bucket == "" {
			fmt.Fprintln(os.Stderr, "-bucket is required")
			return 1
		}
		rec, err := built.Sal.GetBucket(ctx, *tenant, *bucket)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get bucket failed: %v\n", err)
			return 1
		}
		fmt.Printf("tenant=%s bucket=%s owner=%s versioned=%v suspended=%v\n", rec.Tenant, rec.Bucket, rec.Owner, rec.Versioned, rec.Suspended)
	case "rm":
		if *bucket == "" || *owner == "" {
			fmt.Fprintln(os.Stderr, "-bucket and -owner are required")
			return 1
		}
		if err := built.Sal.RemoveBucket(ctx, *tenant, *bucket, *owner); err != nil {
			fmt.Fprintf(os.Stderr, "remove bucket failed: %v\n", err)
			return 1
		}
		fmt.Printf("removed bucket %s\n", catalog.TenantBucketKey(*tenant, *bucket))
	case "ls":
		if *owner == "" {
			fmt.Fprintln(os.Stderr, "-owner is required")
			return 1
		}
		entries, err := built.Sal.ListBucketsForOwner(ctx, *owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list buckets failed: %v\n", err)
			return 1
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%s\n", e.Bucket, humanize.Bytes(uint64(e.Size)), e.Ctime.Format(time.RFC3339))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown bucket subcommand %q\n", sub)
		return 1
	}
	return 0
}

func runStats(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: shoaldctl stats <reconcile> [flags]")
		return 1
	}
	sub, rest := args[0], args[1:]
	if sub != "reconcile" {
		fmt.Fprintf(os.Stderr, "unknown stats subcommand %q\n", sub)
		return 1
	}

	fs := flag.NewFlagSet("stats reconcile", flag.ExitOnError)
	configPath := fs.String("config", "shoalstore.yaml", "path to configuration file")
	tenant := fs.String("tenant", "", "tenant id")
	bucket := fs.String("bucket", "", "bucket name")
	owner := fs.String("owner", "", "bucket owner user id")
	fs.Parse(rest)

	if *bucket == "" || *owner == "" {
		fmt.Fprintln(os.Stderr, "-bucket and -owner are required")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	built, closeStore, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		return 1
	}
	defer closeStore()
	ctx := context.Background()

	tenantBucket := catalog.TenantBucketKey(*tenant, *bucket)
	if err := catalog.Reconcile(ctx, built.Index, objstore.DefaultCatalog(), *owner, *bucket, tenantBucket); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		return 1
	}

	rec, err := built.Sal.GetBucket(ctx, *tenant, *bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciled, but re-reading the bucket record failed: %v\n", err)
		return 1
	}
	fmt.Printf("reconciled stats for %s (owner=%s)\n", tenantBucket, rec.Owner)
	return 0
}

// exportImportDBPath resolves the SQLite index backend path these commands
// operate on directly, bypassing bootstrap.Build: export/import run offline
// against the database file, not through the Index Gateway.
func exportImportDBPath(configPath, dbFlag string) (string, error) {
	if dbFlag != "" {
		return dbFlag, nil
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Index.Backend != "sqlite" {
		return "", fmt.Errorf("index.backend is %q, not \"sqlite\"; pass -db to target a database file directly", cfg.Index.Backend)
	}
	return cfg.Index.SQLite.Path, nil
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "shoalstore.yaml", "path to configuration file")
	dbPath := fs.String("db", "", "SQLite index database path (overrides config)")
	output := fs.String("output", "-", "output file path (- for stdout)")
	indices := fs.String("indices", "", "comma-separated index IDs (default: all)")
	fs.Parse(args)

	db, err := exportImportDBPath(*configPath, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving database path failed: %v\n", err)
		return 1
	}

	opts := &serialization.ExportOptions{}
	if *indices != "" {
		opts.IndexIDs = strings.Split(*indices, ",")
		for i := range opts.IndexIDs {
			opts.IndexIDs[i] = strings.TrimSpace(opts.IndexIDs[i])
		}
	}

	result, err := serialization.ExportIndex(db, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		return 1
	}

	if *output == "-" {
		fmt.Println(result)
		return 0
	}
	if err := os.WriteFile(*output, []byte(result+"\n"), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "writing output failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "exported to %s\n", *output)
	return 0
}

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "shoalstore.yaml", "path to configuration file")
	dbPath := fs.String("db", "", "SQLite index database path (overrides config)")
	input := fs.String("input", "-", "input file path (- for stdin)")
	replace := fs.Bool("replace", false, "replace mode: delete each touched index before inserting")
	fs.Parse(args)

	db, err := exportImportDBPath(*configPath, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving database path failed: %v\n", err)
		return 1
	}

	var jsonData []byte
	if *input == "-" {
		jsonData, err = io.ReadAll(os.Stdin)
	} else {
		jsonData, err = os.ReadFile(*input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading input failed: %v\n", err)
		return 1
	}

	result, err := serialization.ImportIndex(db, string(jsonData), &serialization.ImportOptions{Replace: *replace})
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		return 1
	}

	for table, count := range result.Counts {
		skip := result.Skipped[table]
		msg := fmt.Sprintf("  %s: %d imported", table, count)
		if skip > 0 {
			msg += fmt.Sprintf(", %d skipped", skip)
		}
		fmt.Fprintln(os.Stderr, msg)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "  WARNING: %s\n", w)
	}
	return 0
}
