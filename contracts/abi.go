// Package contracts 保存与链上合约交互所需的 ABI 定义。
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const packedUserOpComponents = `[
	{"internalType": "address", "name": "sender", "type": "address"},
	{"internalType": "uint256", "name": "nonce", "type": "uint256"},
	{"internalType": "bytes", "name": "initCode", "type": "bytes"},
	{"internalType": "bytes", "name": "callData", "type": "bytes"},
	{"internalType": "bytes32", "name": "accountGasLimits", "type": "bytes32"},
	{"internalType": "uint256", "name": "preVerificationGas", "type": "uint256"},
	{"internalType": "bytes32", "name": "gasFees", "type": "bytes32"},
	{"internalType": "bytes", "name": "paymasterAndData", "type": "bytes"},
	{"internalType": "bytes", "name": "signature", "type": "bytes"}
]`

// EntryPointABIJSON EntryPoint v0.7+ 中本系统用到的函数和自定义错误
var EntryPointABIJSON = `[
	{
		"inputs": [
			{"components": ` + packedUserOpComponents + `, "internalType": "struct PackedUserOperation[]", "name": "ops", "type": "tuple[]"},
			{"internalType": "address payable", "name": "beneficiary", "type": "address"}
		],
		"name": "handleOps",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"components": ` + packedUserOpComponents + `, "internalType": "struct PackedUserOperation", "name": "userOp", "type": "tuple"}
		],
		"name": "getUserOpHash",
		"outputs": [{"internalType": "bytes32", "name": "", "type": "bytes32"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "sender", "type": "address"},
			{"internalType": "uint192", "name": "key", "type": "uint192"}
		],
		"name": "getNonce",
		"outputs": [{"internalType": "uint256", "name": "nonce", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "depositTo",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "opIndex", "type": "uint256"},
			{"internalType": "string", "name": "reason", "type": "string"}
		],
		"name": "FailedOp",
		"type": "error"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "opIndex", "type": "uint256"},
			{"internalType": "string", "name": "reason", "type": "string"},
			{"internalType": "bytes", "name": "revertData", "type": "bytes"}
		],
		"name": "FailedOpWithRevert",
		"type": "error"
	}
]`

// SimpleAccountABIJSON 智能账户的 execute 函数
const SimpleAccountABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "dest", "type": "address"},
			{"internalType": "uint256", "name": "value", "type": "uint256"},
			{"internalType": "bytes", "name": "func", "type": "bytes"}
		],
		"name": "execute",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// SimpleAccountFactoryABIJSON 智能账户工厂
const SimpleAccountFactoryABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "uint256", "name": "salt", "type": "uint256"}
		],
		"name": "createAccount",
		"outputs": [{"internalType": "contract SimpleAccount", "name": "ret", "type": "address"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "uint256", "name": "salt", "type": "uint256"}
		],
		"name": "getAddress",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// BatchMintTokenFactoryABIJSON 批量部署代币的工厂合约及其事件
const BatchMintTokenFactoryABIJSON = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "string", "name": "name", "type": "string"},
					{"internalType": "string", "name": "symbol", "type": "string"},
					{"internalType": "uint256", "name": "totalSupply", "type": "uint256"}
				],
				"internalType": "struct TokenParam[]",
				"name": "params_",
				"type": "tuple[]"
			}
		],
		"name": "deployTokens",
		"outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "creator", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "token", "type": "address"},
			{"indexed": false, "internalType": "string", "name": "name", "type": "string"},
			{"indexed": false, "internalType": "string", "name": "symbol", "type": "string"}
		],
		"name": "TokenDeployed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "creator", "type": "address"},
			{"indexed": false, "internalType": "string", "name": "name", "type": "string"},
			{"indexed": false, "internalType": "string", "name": "symbol", "type": "string"},
			{"indexed": false, "internalType": "string", "name": "reason", "type": "string"}
		],
		"name": "TokenSkipped",
		"type": "event"
	}
]`

var (
	EntryPoint            = mustParse("EntryPoint", EntryPointABIJSON)
	SimpleAccount         = mustParse("SimpleAccount", SimpleAccountABIJSON)
	SimpleAccountFactory  = mustParse("SimpleAccountFactory", SimpleAccountFactoryABIJSON)
	BatchMintTokenFactory = mustParse("BatchMintTokenFactory", BatchMintTokenFactoryABIJSON)
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
	}
	return parsed
}

// PackedUserOperation handleOps / getUserOpHash 使用的元组结构
type PackedUserOperation struct {
	Sender             common.Address
	Nonce              *big.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte
	PreVerificationGas *big.Int
	GasFees            [32]byte
	PaymasterAndData   []byte
	Signature          []byte
}

// TokenParam deployTokens 的参数元组
type TokenParam struct {
	Name        string
	Symbol      string
	TotalSupply *big.Int
}
