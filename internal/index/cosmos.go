package index

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/shoalstore/shoalstore/internal/config"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// CosmosBackend implements Backend over a single Cosmos DB container,
// partitioned by index ID so NEXT's cursor query stays within one logical
// partition.
type CosmosBackend struct {
	client    *azcosmos.ContainerClient
	database  string
	container string
}

type cosmosItem struct {
	ID      string `json:"id"`
	IndexID string `json:"index_id"`
	KeyB64  string `json:"key"`
	ValueB64 string `json:"value"`
}

func cosmosDocID(key []byte) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(key)
}

// NewCosmosBackend connects to the Cosmos DB database/container named in
// cfg using a master key credential.
func NewCosmosBackend(cfg *config.CosmosConfig) (*CosmosBackend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cosmos config is required")
	}
	if cfg.AccountURL == "" || cfg.MasterKey == "" {
		return nil, fmt.Errorf("cosmos account URL and master key are required")
	}
	if cfg.Database == "" || cfg.Container == "" {
		return nil, fmt.Errorf("cosmos database and container names are required")
	}

	cred, err := azcosmos.NewKeyCredential(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("creating cosmos key credential: %w", err)
	}

	client, err := azcosmos.NewClientWithKey(cfg.AccountURL, cred, &azcosmos.ClientOptions{
		ClientOptions: policy.ClientOptions{},
	})
	if err != nil {
		return nil, fmt.Errorf("creating cosmos client: %w", err)
	}

	containerClient, err := client.NewContainer(cfg.Database, cfg.Container)
	if err != nil {
		return nil, fmt.Errorf("opening cosmos container: %w", err)
	}

	return &CosmosBackend{client: containerClient, database: cfg.Database, container: cfg.Container}, nil
}

func (b *CosmosBackend) Put(ctx context.Context, id idgen.ID, key, value []byte, overwrite bool) error {
	pk := azcosmos.NewPartitionKeyString(id.String())
	item := cosmosItem{
		ID:       cosmosDocID(key),
		IndexID:  id.String(),
		KeyB64:   base64.StdEncoding.EncodeToString(key),
		ValueB64: base64.StdEncoding.EncodeToString(value),
	}
	data, err := json.Marshal(item)
	if err != nil {
		return errors.Wrap(errors.Transport, "cosmos marshal: %v", err)
	}

	if overwrite {
		_, err = b.client.UpsertItem(ctx, pk, data, nil)
	} else {
		_, err = b.client.CreateItem(ctx, pk, data, nil)
	}
	if err != nil {
		if isCosmosConflict(err) {
			return errors.Wrap(errors.AlreadyExists, "key %x", key)
		}
		return errors.Wrap(errors.Transport, "cosmos put: %v", err)
	}
	return nil
}

func (b *CosmosBackend) Get(ctx context.Context, id idgen.ID, key []byte) ([]byte, error) {
	pk := azcosmos.NewPartitionKeyString(id.String())
	resp, err := b.client.ReadItem(ctx, pk, cosmosDocID(key), nil)
	if err != nil {
		if isCosmosNotFound(err) {
			return nil, errors.Wrap(errors.NotFound, "key %x", key)
		}
		return nil, errors.Wrap(errors.Transport, "cosmos get: %v", err)
	}
	var item cosmosItem
	if err := json.Unmarshal(resp.Value, &item); err != nil {
		return nil, errors.Wrap(errors.Transport, "cosmos get unmarshal: %v", err)
	}
	value, err := base64.StdEncoding.DecodeString(item.ValueB64)
	if err != nil {
		return nil, errors.Wrap(errors.Transport, "cosmos get decode: %v", err)
	}
	return value, nil
}

func (b *CosmosBackend) Del(ctx context.Context, id idgen.ID, key []byte) error {
	pk := azcosmos.NewPartitionKeyString(id.String())
	_, err := b.client.DeleteItem(ctx, pk, cosmosDocID(key), nil)
	if err != nil {
		if isCosmosNotFound(err) {
			return errors.Wrap(errors.NotFound, "key %x", key)
		}
		return errors.Wrap(errors.Transport, "cosmos del: %v", err)
	}
	return nil
}

func (b *CosmosBackend) Next(ctx context.Context, id idgen.ID, cursor []byte, max int) ([]Entry, error) {
	pk := azcosmos.NewPartitionKeyString(id.String())
	query := "SELECT * FROM c WHERE c.index_id = @indexID ORDER BY c.key"
	pager := b.client.NewQueryItemsPager(query, pk, &azcosmos.QueryOptions{
		QueryParameters: []azcosmos.QueryParameter{{Name: "@indexID", Value: id.String()}},
	})

	out := make([]Entry, 0, max)
	for pager.More() && len(out) < max {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.Transport, "cosmos next: %v", err)
		}
		for _, raw := range resp.Items {
			var item cosmosItem
			if err := json.Unmarshal(raw, &item); err != nil {
				continue
			}
			key, err := base64.StdEncoding.DecodeString(item.KeyB64)
			if err != nil || bytes.Compare(key, cursor) < 0 {
				continue
			}
			value, err := base64.StdEncoding.DecodeString(item.ValueB64)
			if err != nil {
				continue
			}
			out = append(out, Entry{Key: key, Value: value})
			if len(out) >= max {
				break
			}
		}
	}
	return out, nil
}

func (b *CosmosBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.Read(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.Transport, "cosmos health check: %v", err)
	}
	return nil
}

func isCosmosConflict(err error) bool {
	var respErr *azcore.ResponseError
	return stderrors.As(err, &respErr) && respErr.StatusCode == 409
}

func isCosmosNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return stderrors.As(err, &respErr) && respErr.StatusCode == 404
}
