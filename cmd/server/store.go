package main

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/vedran77/orbit/internal/config"
	"github.com/vedran77/orbit/internal/database"
	"github.com/vedran77/orbit/internal/repository"
	"github.com/vedran77/orbit/internal/repository/changefeed"
	"github.com/vedran77/orbit/internal/repository/memory"
	mongorepo "github.com/vedran77/orbit/internal/repository/mongo"
	postgresrepo "github.com/vedran77/orbit/internal/repository/postgres"
	"github.com/vedran77/orbit/internal/service"
)

type store struct {
	profiles repository.ProfileRepository
	requests repository.RequestRepository
	resolver repository.ConnectionResolver

	// watch feeds the change broker until ctx is done.
	watch func(ctx context.Context)
	close func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	feed := changefeed.NewBroker()

	switch cfg.StoreBackend {
	case "postgres":
		pool, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		glog.Infof("connected to postgres %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

		listener := postgresrepo.NewListener(pool, feed)
		return &store{
			profiles: postgresrepo.NewProfileRepo(pool, feed),
			requests: postgresrepo.NewRequestRepo(pool, feed),
			resolver: postgresrepo.NewResolver(pool),
			watch:    listener.Run,
			close:    pool.Close,
		}, nil

	case "mongo":
		db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		profiles := mongorepo.NewProfileRepo(db, feed)
		requests := mongorepo.NewRequestRepo(db, feed)
		if err := profiles.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("creating profile indexes: %w", err)
		}
		if err := requests.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("creating request indexes: %w", err)
		}
		glog.Infof("connected to mongo database %s", cfg.MongoDatabase)

		watcher := mongorepo.NewWatcher(db, feed)
		return &store{
			profiles: profiles,
			requests: requests,
			resolver: service.NewFetchResolver(profiles),
			watch:    watcher.Run,
			close: func() {
				if err := db.Client().Disconnect(context.Background()); err != nil {
					glog.Warningf("mongo disconnect error = %s", err)
				}
			},
		}, nil

	case "memory":
		mem := memory.New()
		glog.Warningf("using the in-memory store, nothing will be persisted")
		return &store{
			profiles: mem.Profiles(),
			requests: mem.Requests(),
			resolver: service.NewFetchResolver(mem.Profiles()),
			watch:    func(ctx context.Context) {},
			close:    func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
