package config

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// LocalChainID 本地 anvil / hardhat 节点
	LocalChainID uint64 = 31337
	// TestnetChainID Sepolia 测试网
	TestnetChainID uint64 = 11155111
)

// NetworkContracts 某条链上流水线用到的合约地址
type NetworkContracts struct {
	EntryPoint            common.Address
	SimpleAccountFactory  common.Address
	BatchMintTokenFactory common.Address
	// DeployBlock 代币工厂部署所在区块，查询历史事件的起点
	DeployBlock uint64
}

// Missing 返回未配置（零地址）的合约名
func (n NetworkContracts) Missing() []string {
	var missing []string
	if n.EntryPoint == (common.Address{}) {
		missing = append(missing, "entryPoint")
	}
	if n.SimpleAccountFactory == (common.Address{}) {
		missing = append(missing, "simpleAccountFactory")
	}
	if n.BatchMintTokenFactory == (common.Address{}) {
		missing = append(missing, "batchMintTokenFactory")
	}
	return missing
}

// Networks chainID -> 合约地址
type Networks map[uint64]NetworkContracts

// Resolve 查找链对应的合约地址；找不到表示该链上不提供部署
func (n Networks) Resolve(chainID uint64) (NetworkContracts, bool) {
	c, ok := n[chainID]
	return c, ok
}

// networkEntry 配置文件中的一条网络记录
type networkEntry struct {
	EntryPoint            string `mapstructure:"entry_point"`
	SimpleAccountFactory  string `mapstructure:"simple_account_factory"`
	BatchMintTokenFactory string `mapstructure:"batch_mint_token_factory"`
	DeployBlock           uint64 `mapstructure:"batch_mint_token_factory_deploy_block"`
}

func (e networkEntry) contracts() (NetworkContracts, error) {
	var (
		c   NetworkContracts
		err error
	)
	if c.EntryPoint, err = parseAddress(e.EntryPoint); err != nil {
		return c, fmt.Errorf("entry point: %w", err)
	}
	if c.SimpleAccountFactory, err = parseAddress(e.SimpleAccountFactory); err != nil {
		return c, fmt.Errorf("simple account factory: %w", err)
	}
	if c.BatchMintTokenFactory, err = parseAddress(e.BatchMintTokenFactory); err != nil {
		return c, fmt.Errorf("batch mint token factory: %w", err)
	}
	c.DeployBlock = e.DeployBlock
	return c, nil
}

// buildNetworks 合并内置的本地/测试网配置和配置文件中的 networks 表，后者优先
func buildNetworks(local, testnet networkEntry, extra map[string]networkEntry) (Networks, error) {
	networks := Networks{}

	builtin := map[uint64]networkEntry{LocalChainID: local, TestnetChainID: testnet}
	for id, entry := range builtin {
		c, err := entry.contracts()
		if err != nil {
			return nil, fmt.Errorf("network %d: %w", id, err)
		}
		networks[id] = c
	}

	for key, entry := range extra {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q in networks", key)
		}
		c, err := entry.contracts()
		if err != nil {
			return nil, fmt.Errorf("network %d: %w", id, err)
		}
		networks[id] = c
	}
	return networks, nil
}

// parseAddress 空字符串视为未配置
func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
