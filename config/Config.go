package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 存储驱动
const (
	StoreNone  = "none"
	StoreMySQL = "mysql"
	StoreMongo = "mongo"
)

// Config 服务与命令行共用的配置
type Config struct {
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID uint64 `mapstructure:"chain_id"`

	PrivateKey   string `mapstructure:"private_key"`
	SignerURL    string `mapstructure:"signer_url"`
	OwnerAddress string `mapstructure:"owner_address"`

	HTTPAddr  string `mapstructure:"http_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	StoreDriver   string `mapstructure:"store_driver"`
	MySQLDSN      string `mapstructure:"mysql_dsn"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	RedisAddr string        `mapstructure:"redis_addr"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`

	Local   networkEntry            `mapstructure:",squash"`
	Testnet testnetEntry            `mapstructure:",squash"`
	Extra   map[string]networkEntry `mapstructure:"networks"`

	// Networks 由上面三项合并得到
	Networks Networks `mapstructure:"-"`
}

// testnetEntry 与 networkEntry 相同，只是环境变量使用 TESTNET_ 前缀
type testnetEntry struct {
	EntryPoint            string `mapstructure:"testnet_entry_point"`
	SimpleAccountFactory  string `mapstructure:"testnet_simple_account_factory"`
	BatchMintTokenFactory string `mapstructure:"testnet_batch_mint_token_factory"`
	DeployBlock           uint64 `mapstructure:"testnet_batch_mint_token_factory_deploy_block"`
}

// Owner 远程签名时配置的 owner 地址
func (c *Config) Owner() (common.Address, error) {
	if !common.IsHexAddress(c.OwnerAddress) {
		return common.Address{}, fmt.Errorf("invalid OWNER_ADDRESS %q", c.OwnerAddress)
	}
	return common.HexToAddress(c.OwnerAddress), nil
}

// LoadEnv 加载 .env 文件中的环境变量，文件不存在时忽略
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// Load 读取配置：环境变量优先，其次 config.yaml，最后是默认值
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	networks, err := buildNetworks(cfg.Local, networkEntry(cfg.Testnet), cfg.Extra)
	if err != nil {
		return nil, err
	}
	cfg.Networks = networks
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(c.StoreDriver)
	switch c.StoreDriver {
	case StoreNone:
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return errors.New("MYSQL_DSN is required for the mysql store")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.PrivateKey == "" && c.SignerURL != "" {
		if _, err := c.Owner(); err != nil {
			return err
		}
	}
	return nil
}

// setDefaults 所有键都需要注册，AutomaticEnv 才能在 Unmarshal 时读到环境变量
func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "http://localhost:8545")
	v.SetDefault("chain_id", 0)

	v.SetDefault("private_key", "")
	v.SetDefault("signer_url", "")
	v.SetDefault("owner_address", "")

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetDefault("store_driver", StoreNone)
	v.SetDefault("mysql_dsn", "")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "batchmint")

	v.SetDefault("redis_addr", "")
	v.SetDefault("lock_ttl", "10m")

	v.SetDefault("entry_point", "")
	v.SetDefault("simple_account_factory", "")
	v.SetDefault("batch_mint_token_factory", "")
	v.SetDefault("testnet_entry_point", "")
	v.SetDefault("testnet_simple_account_factory", "")
	v.SetDefault("testnet_batch_mint_token_factory", "")
	v.SetDefault("batch_mint_token_factory_deploy_block", 0)
	v.SetDefault("testnet_batch_mint_token_factory_deploy_block", 0)

	// 本地网络沿用前端的变量名
	_ = v.BindEnv("entry_point", "LOCAL_ENTRY_POINT")
	_ = v.BindEnv("simple_account_factory", "LOCAL_SIMPLE_ACCOUNT_FACTORY")
	_ = v.BindEnv("batch_mint_token_factory", "LOCAL_BATCH_MINT_TOKEN_FACTORY")
}

// GetMongoClient 创建并返回一个 MongoDB 客户端
func GetMongoClient(ctx context.Context, mongoURI string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(mongoURI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return client, nil
}
