package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/config"
	"crm-functions/internal/common/database"
	httpclient "crm-functions/internal/common/http"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/documents"
	"crm-functions/internal/notify"
	"crm-functions/internal/search"
)

// Runtime owns the live connections behind Dependencies.
type Runtime struct {
	Dependencies
	DB          *sql.DB
	RedisClient *redis.Client
}

// Open connects every backing service named in cfg. The database helpers
// retry their first ping, so a failure here means the service stayed down.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	rt := &Runtime{Dependencies: Dependencies{Config: cfg, Logger: log}}

	db, err := database.OpenPostgres(ctx, cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	rt.DB = db
	rt.Store = documents.NewStore(db)
	log.Info("PostgreSQL connected", map[string]interface{}{"host": cfg.Database.Postgres.Host})

	rdb, err := database.OpenRedis(ctx, cfg.Database.Redis)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.RedisClient = rdb
	rt.Redis = rdb
	log.Info("Redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})

	es, err := database.OpenElasticsearch(ctx, cfg.Database.Elasticsearch)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Index = search.NewMessageIndex(es, cfg.Database.Elasticsearch.MessageIndex)
	log.Info("Elasticsearch connected", map[string]interface{}{"index": rt.Index.Name()})

	rt.Connector, err = salesforce.NewConnector(cfg.CRM, salesforce.NewRedisTokenCache(rdb, cfg.CRM.TokenCachePrefix), log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("crm connector: %w", err)
	}
	if !rt.Connector.MintingEnabled() {
		log.Warn("CRM JWT bearer flow not configured, only caller sessions reach the CRM", nil)
	}

	rt.Blobs, err = blob.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}

	rt.Notifier, err = notify.NewFromConfig(ctx, cfg.Notifications, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}

	rt.Downloader = httpclient.NewClient(config.GetDuration(cfg.Workflow.DownloadTimeout))
	return rt, nil
}

func (r *Runtime) Close() {
	if r.RedisClient != nil {
		_ = r.RedisClient.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
}
