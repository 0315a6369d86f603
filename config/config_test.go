package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	entryPointAddr = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"
	factoryAddr    = "0x91E60e0613810449d098b0b5Ec8b51A0FE8c8985"
	tokenAddr      = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

func TestLoad_Defaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StoreNone, cfg.StoreDriver)

	local, ok := cfg.Networks.Resolve(LocalChainID)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"entryPoint", "simpleAccountFactory", "batchMintTokenFactory"}, local.Missing())

	_, ok = cfg.Networks.Resolve(1)
	assert.False(t, ok)
}

func TestLoad_NetworkContractsFromEnv(t *testing.T) {
	t.Setenv("LOCAL_ENTRY_POINT", entryPointAddr)
	t.Setenv("LOCAL_SIMPLE_ACCOUNT_FACTORY", factoryAddr)
	t.Setenv("LOCAL_BATCH_MINT_TOKEN_FACTORY", tokenAddr)
	t.Setenv("TESTNET_ENTRY_POINT", entryPointAddr)
	t.Setenv("TESTNET_BATCH_MINT_TOKEN_FACTORY_DEPLOY_BLOCK", "6400000")

	cfg, err := Load()
	require.NoError(t, err)

	local, ok := cfg.Networks.Resolve(LocalChainID)
	require.True(t, ok)
	assert.Empty(t, local.Missing())
	assert.Equal(t, common.HexToAddress(entryPointAddr), local.EntryPoint)
	assert.Equal(t, common.HexToAddress(factoryAddr), local.SimpleAccountFactory)
	assert.Equal(t, common.HexToAddress(tokenAddr), local.BatchMintTokenFactory)

	testnet, ok := cfg.Networks.Resolve(TestnetChainID)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(entryPointAddr), testnet.EntryPoint)
	assert.Equal(t, []string{"simpleAccountFactory", "batchMintTokenFactory"}, testnet.Missing())
	assert.Equal(t, uint64(6400000), testnet.DeployBlock)
	assert.Zero(t, local.DeployBlock)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad address", env: map[string]string{"LOCAL_ENTRY_POINT": "0x1234"}},
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "mysql without dsn", env: map[string]string{"STORE_DRIVER": "mysql"}},
		{name: "mongo without uri", env: map[string]string{"STORE_DRIVER": "mongo"}},
		{name: "remote signer without owner", env: map[string]string{"SIGNER_URL": "http://localhost:9000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestBuildNetworks_ExtraOverrides(t *testing.T) {
	networks, err := buildNetworks(networkEntry{}, networkEntry{}, map[string]networkEntry{
		"31337": {EntryPoint: entryPointAddr, SimpleAccountFactory: factoryAddr, BatchMintTokenFactory: tokenAddr},
		"8453":  {EntryPoint: entryPointAddr},
	})
	require.NoError(t, err)

	local, ok := networks.Resolve(LocalChainID)
	require.True(t, ok)
	assert.Empty(t, local.Missing())

	base, ok := networks.Resolve(8453)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(entryPointAddr), base.EntryPoint)

	_, err = buildNetworks(networkEntry{}, networkEntry{}, map[string]networkEntry{"mainnet": {}})
	assert.Error(t, err)
}

func TestNewLogger_Level(t *testing.T) {
	assert.Equal(t, "debug", NewLogger("debug", false).GetLevel().String())
	assert.Equal(t, "info", NewLogger("nonsense", true).GetLevel().String())
}
