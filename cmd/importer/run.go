package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ProfileImport/internal/config"
	"github.com/JonMunkholm/ProfileImport/internal/core"
	"github.com/JonMunkholm/ProfileImport/internal/logging"
	"github.com/JonMunkholm/ProfileImport/internal/source"
	"github.com/JonMunkholm/ProfileImport/internal/store/appwrite"
	"github.com/JonMunkholm/ProfileImport/internal/store/memory"
	mongostore "github.com/JonMunkholm/ProfileImport/internal/store/mongo"
	"github.com/JonMunkholm/ProfileImport/internal/store/postgres"
)

// run performs one import with a validated cfg: open the store, ingest the
// CSV, upload every row. Only failures that prevent the import from running
// are returned; per-row failures are reported in the Result.
func run(ctx context.Context, cfg *config.Config) (core.Result, error) {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	logger := logging.FromContext(ctx)

	logger.Debug("configuration loaded", "config", cfg.String())

	aw, err := newAppwriteClient(cfg)
	if err != nil {
		return core.Result{}, err
	}

	store, closeStore, err := openStore(ctx, cfg, aw)
	if err != nil {
		return core.Result{}, err
	}
	defer closeStore()

	rows, err := core.NewIngestor(newOpener(cfg, aw), logger).Ingest(ctx, cfg.Source.Location)
	if err != nil {
		return core.Result{}, err
	}

	target := core.Target{DatabaseID: cfg.Target.DatabaseID, CollectionID: cfg.Target.CollectionID}
	uploader := core.NewUploader(store, target, logger, core.UploadOptions{Concurrency: cfg.Upload.Concurrency})

	res, err := uploader.Upload(ctx, rows)
	logger.Debug("import finished",
		"backend", cfg.Store.Backend,
		"total", res.Total,
		"uploaded", res.Uploaded,
		"failed", res.Failed,
	)
	if err != nil {
		return res, fmt.Errorf("upload interrupted: %w", err)
	}
	return res, nil
}

// newAppwriteClient returns nil when no Appwrite project is configured.
// The client is also used to authenticate CSV downloads from Appwrite storage.
func newAppwriteClient(cfg *config.Config) (*appwrite.Client, error) {
	if cfg.Appwrite.Endpoint == "" || cfg.Appwrite.ProjectID == "" {
		return nil, nil
	}
	return appwrite.NewClient(appwrite.Config{
		Endpoint:   cfg.Appwrite.Endpoint,
		ProjectID:  cfg.Appwrite.ProjectID,
		APIKey:     cfg.Appwrite.APIKey,
		Timeout:    cfg.Appwrite.Timeout,
		SelfSigned: cfg.Appwrite.SelfSigned,
	})
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, aw *appwrite.Client) (core.DocumentStore, func(), error) {
	logger := logging.WithFields(ctx, "backend", cfg.Store.Backend)

	switch strings.ToLower(cfg.Store.Backend) {
	case config.BackendAppwrite:
		if aw == nil {
			return nil, nil, fmt.Errorf("appwrite backend requires APPWRITE_ENDPOINT and APPWRITE_PROJECT_ID")
		}
		logger.Debug("using appwrite store", "endpoint", aw.Endpoint())
		return appwrite.NewStore(aw), func() {}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		logger.Debug("connected to database")
		return postgres.NewStore(db), func() { _ = db.Close() }, nil

	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("connected to mongo")
		return mongostore.NewStore(client), func() { _ = client.Disconnect(context.Background()) }, nil

	case config.BackendMemory:
		logger.Debug("using in-memory store, nothing will be persisted")
		return memory.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newOpener builds the CSV opener. URLs under the Appwrite endpoint carry the
// project headers, and share its transport so self-signed servers work.
func newOpener(cfg *config.Config, aw *appwrite.Client) *source.Opener {
	opts := source.Options{
		Timeout: cfg.Source.Timeout,
		MaxSize: cfg.Source.MaxFileSize,
	}
	if aw != nil {
		opts.HTTPClient = &http.Client{
			Timeout:   cfg.Source.Timeout,
			Transport: aw.HTTPClient().Transport,
		}
		opts.AuthPrefix = aw.Endpoint() + "/"
		opts.AuthHeaders = aw.AuthHeaders()
	}
	return source.NewOpener(opts)
}
