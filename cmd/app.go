package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/chain"
	"github.com/olowe/batchmint-4337/config"
	"github.com/olowe/batchmint-4337/metrics"
	"github.com/olowe/batchmint-4337/pipeline"
	"github.com/olowe/batchmint-4337/signer"
	"github.com/olowe/batchmint-4337/store"
)

// app 命令共用的依赖
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	client   *ethclient.Client
	deployer *pipeline.Deployer
	store    store.Store
	registry *prometheus.Registry
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   config.NewLogger(cfg.LogLevel, cfg.LogPretty),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	// 连接以太坊客户端
	client, err := chain.Dial(ctx, a.cfg.RPCURL)
	if err != nil {
		return err
	}
	a.client = client
	a.closers = append(a.closers, client.Close)

	chainID := new(big.Int).SetUint64(a.cfg.ChainID)
	if a.cfg.ChainID == 0 {
		if chainID, err = client.ChainID(ctx); err != nil {
			return fmt.Errorf("error getting chain ID: %w", err)
		}
	}
	logger := a.logger.With().Uint64("chain_id", chainID.Uint64()).Logger()

	network, ok := a.cfg.Networks.Resolve(chainID.Uint64())
	if !ok {
		logger.Warn().Msg("no contracts configured for this chain, deployment disabled")
	} else if missing := network.Missing(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("network contracts incomplete, deployment disabled")
	}

	owner, err := a.newSigner(ctx)
	if err != nil {
		return err
	}
	if owner == nil {
		logger.Warn().Msg("neither PRIVATE_KEY nor SIGNER_URL set, deployment disabled")
	}

	guard, err := a.newGuard(ctx)
	if err != nil {
		return err
	}

	st, err := a.newStore(ctx)
	if err != nil {
		return err
	}
	a.store = st

	observers := []pipeline.Observer{metrics.New(a.registry)}
	if a.cfg.StoreDriver != config.StoreNone {
		observers = append(observers, store.NewRecorder(st, logger))
	}

	opts := pipeline.Options{
		Backend:   client,
		ChainID:   chainID,
		Network:   network,
		Available: ok,
		Guard:     guard,
		Logger:    logger,
		Observers: observers,
	}
	// 接口值为 nil 时 Deployer 才能识别出没有签名者
	if owner != nil {
		opts.Signer = owner
	}
	a.deployer = pipeline.NewDeployer(opts)
	return nil
}

func (a *app) newSigner(ctx context.Context) (signer.Signer, error) {
	switch {
	case a.cfg.PrivateKey != "":
		return signer.NewLocalSigner(a.cfg.PrivateKey)
	case a.cfg.SignerURL != "":
		owner, err := a.cfg.Owner()
		if err != nil {
			return nil, err
		}
		remote, err := signer.DialRemoteSigner(ctx, a.cfg.SignerURL, owner)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, remote.Close)
		return remote, nil
	default:
		return nil, nil
	}
}

func (a *app) newGuard(ctx context.Context) (pipeline.Guard, error) {
	if a.cfg.RedisAddr == "" {
		return pipeline.NewMemoryGuard(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return pipeline.NewRedisGuard(client, a.cfg.LockTTL), nil
}

func (a *app) newStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := config.ConnectDB(ctx, a.cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mysql: %w", err)
		}
		st, err := store.NewMySQL(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return st, nil
	case config.StoreMongo:
		client, err := config.GetMongoClient(ctx, a.cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		st, err := store.NewMongo(ctx, client, a.cfg.MongoDatabase)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return st, nil
	default:
		return store.Nop{}, nil
	}
}

// Close 释放连接
func (a *app) Close() {
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Close(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("error closing store")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
