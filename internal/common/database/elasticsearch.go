// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"time"

	"crm-functions/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// OpenElasticsearch creates the search client and checks the cluster answers.
func OpenElasticsearch(ctx context.Context, cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	err = retry(ctx, 3, time.Second, func(ctx context.Context) error {
		res, err := es.Ping(es.Ping.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("status %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	return es, nil
}
