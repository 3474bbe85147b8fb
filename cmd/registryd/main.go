// Command registryd runs the service registry's background process: the
// dynamic store's reaper plus the query resource backing whatever
// transport layer is wired in front of it. It does not itself expose an
// HTTP or RPC endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	regclock "svc-registry/clock"
	"svc-registry/codec"
	env "svc-registry/config"
	"svc-registry/dynamicstore"
	"svc-registry/filer"
	"svc-registry/mysql"
	"svc-registry/parser"
	"svc-registry/query"
	regredis "svc-registry/redis"
	"svc-registry/schema"
	"svc-registry/staticstore"
	"svc-registry/store"
)

func main() {
	logger := logrus.StandardLogger()

	var cfg env.Config
	env.Read(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := regredis.NewClient(ctx, regredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialRetryMax: 30 * time.Second,
	})
	if err != nil {
		logger.WithError(err).Fatal("registryd: connect redis")
	}

	if err := schema.New(client, cfg.Redis.KeyPrefix).Ensure(ctx); err != nil {
		logger.WithError(err).Fatal("registryd: ensure schema")
	}

	comp, err := cfg.Compressor()
	if err != nil {
		logger.WithError(err).Fatal("registryd: resolve compression algorithm")
	}
	svcCodec := codec.New(&parser.JSONParser{}, comp)

	columns := store.NewRedisColumnStore(client, cfg.Redis.KeyPrefix)
	publisher := regredis.NewPubSubService(client)

	dynamic := dynamicstore.New(columns, svcCodec, regclock.NewSystem(), dynamicstore.Config{
		ReaperPageSize: cfg.ReaperPageSize,
		ReaperInterval: time.Duration(cfg.ReaperIntervalMs) * time.Millisecond,
		MaxAgeMs:       cfg.MaxAgeMs,
		Publisher:      publisher,
		PublishChannel: cfg.Redis.KeyPrefix + ":reap",
	}, logger)

	if err := dynamic.Initialize(ctx); err != nil {
		logger.WithError(err).Fatal("registryd: initialize dynamic store")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dynamic.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("registryd: dynamic store shutdown")
		}
	}()

	static, err := newStaticStore(cfg)
	if err != nil {
		logger.WithError(err).Fatal("registryd: build static store")
	}

	queryResource := query.New(dynamic, static, cfg.Environment)
	_ = queryResource // held for the transport layer wired on top of this process

	logger.WithField("environment", cfg.Environment).Info("registryd: ready")
	<-ctx.Done()
	logger.Info("registryd: shutting down")
}

func newStaticStore(cfg env.Config) (staticstore.StaticStore, error) {
	switch cfg.StaticBackend {
	case "", "file":
		return staticstore.NewFileStore(filer.NewJsonLoader(), cfg.StaticPath)
	case "mysql":
		db, err := mysql.NewClient(mysql.Options{
			DBName: cfg.MySQL.DBName,
			User:   cfg.MySQL.User,
			Passwd: cfg.MySQL.Passwd,
			Addr:   cfg.MySQL.Addr,
		})
		if err != nil {
			return nil, err
		}
		return staticstore.NewMySQLStore(db, ""), nil
	default:
		return nil, errUnknownStaticBackend(cfg.StaticBackend)
	}
}

type errUnknownStaticBackend string

func (e errUnknownStaticBackend) Error() string {
	return "registryd: unknown static backend " + string(e)
}
