package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/olowe/batchmint-4337/contracts"
	"github.com/olowe/batchmint-4337/userop"
)

// Call 一次合约调用（模拟或发送）
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// EntryPoint EntryPoint 合约的读取与调用编码
type EntryPoint struct {
	backend Backend
	address common.Address
}

// NewEntryPoint 创建 EntryPoint 实例
func NewEntryPoint(backend Backend, address common.Address) *EntryPoint {
	return &EntryPoint{backend: backend, address: address}
}

// Address 合约地址
func (ep *EntryPoint) Address() common.Address {
	return ep.address
}

// GetNonce getNonce(account, key)
func (ep *EntryPoint) GetNonce(ctx context.Context, account common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = new(big.Int)
	}
	var nonce *big.Int
	if err := call(ctx, ep.backend, contracts.EntryPoint, ep.address, &nonce, "getNonce", account, key); err != nil {
		return nil, err
	}
	return nonce, nil
}

// GetUserOpHash getUserOpHash(op)，只读
func (ep *EntryPoint) GetUserOpHash(ctx context.Context, op userop.UserOperation) (common.Hash, error) {
	var hash [32]byte
	if err := call(ctx, ep.backend, contracts.EntryPoint, ep.address, &hash, "getUserOpHash", op.ABI()); err != nil {
		return common.Hash{}, err
	}
	return common.Hash(hash), nil
}

// BalanceOf 账户在 EntryPoint 的存款
func (ep *EntryPoint) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := call(ctx, ep.backend, contracts.EntryPoint, ep.address, &balance, "balanceOf", account); err != nil {
		return nil, err
	}
	return balance, nil
}

// DepositTo depositTo(account)，附带 value
func (ep *EntryPoint) DepositTo(account common.Address, value *big.Int) (Call, error) {
	data, err := contracts.EntryPoint.Pack("depositTo", account)
	if err != nil {
		return Call{}, fmt.Errorf("error packing depositTo: %w", err)
	}
	return Call{To: ep.address, Value: value, Data: data}, nil
}

// HandleOps handleOps(ops, beneficiary)
func (ep *EntryPoint) HandleOps(ops []userop.UserOperation, beneficiary common.Address) (Call, error) {
	tuples := make([]contracts.PackedUserOperation, len(ops))
	for i, op := range ops {
		tuples[i] = op.ABI()
	}
	data, err := contracts.EntryPoint.Pack("handleOps", tuples, beneficiary)
	if err != nil {
		return Call{}, fmt.Errorf("error packing handleOps: %w", err)
	}
	return Call{To: ep.address, Value: new(big.Int), Data: data}, nil
}

// AccountFactory 智能账户工厂
type AccountFactory struct {
	backend Backend
	address common.Address
}

// NewAccountFactory 创建工厂实例
func NewAccountFactory(backend Backend, address common.Address) *AccountFactory {
	return &AccountFactory{backend: backend, address: address}
}

// GetAddress getAddress(owner, salt)，返回确定性的账户地址
func (f *AccountFactory) GetAddress(ctx context.Context, owner common.Address, salt *big.Int) (common.Address, error) {
	if salt == nil {
		salt = userop.AccountSalt
	}
	var account common.Address
	if err := call(ctx, f.backend, contracts.SimpleAccountFactory, f.address, &account, "getAddress", owner, salt); err != nil {
		return common.Address{}, err
	}
	return account, nil
}

func call(ctx context.Context, b Backend, parsed abi.ABI, to common.Address, out interface{}, method string, args ...interface{}) error {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("error packing %s: %w", method, err)
	}
	output, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	results, err := parsed.Unpack(method, output)
	if err != nil {
		return fmt.Errorf("error unpacking %s: %w", method, err)
	}
	if len(results) == 0 {
		return fmt.Errorf("%s: empty result", method)
	}
	abi.ConvertType(results[0], out)
	return nil
}
