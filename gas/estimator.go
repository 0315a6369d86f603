// Package gas 估算 UserOperation 的 gas 上限、手续费以及 EntryPoint 预存款缺口。
//
// 这里的常量是保守的经验值，并不是基于市场的定价算法。
package gas

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/olowe/batchmint-4337/contracts"
	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/userop"
)

var (
	// DefaultMaxFeePerGas 节点没有手续费数据时的下限 (3 gwei)
	DefaultMaxFeePerGas = new(big.Int).Mul(big.NewInt(3), big.NewInt(params.GWei))
	// DefaultMaxPriorityFeePerGas 节点没有手续费数据时的下限 (2 gwei)
	DefaultMaxPriorityFeePerGas = new(big.Int).Mul(big.NewInt(2), big.NewInt(params.GWei))
)

const (
	// NewAccountVerificationGasLimit 同一操作中需要部署智能账户
	NewAccountVerificationGasLimit = 2_400_000
	// ExistingAccountVerificationGasLimit 智能账户已存在
	ExistingAccountVerificationGasLimit = 1_200_000

	basePreVerificationGas     = 150_000
	perTokenPreVerificationGas = 21_000
)

// GasEstimator 节点的 gas 估算接口，*ethclient.Client 满足该接口
type GasEstimator interface {
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
}

// FeeData EIP-1559 手续费快照，字段为 nil 表示节点没有提供
type FeeData struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Plan 一次操作的 gas 预算
type Plan struct {
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Estimator 带 30% 余量的 gas 估算
type Estimator struct {
	node GasEstimator
}

// NewEstimator 创建估算器
func NewEstimator(node GasEstimator) *Estimator {
	return &Estimator{node: node}
}

// EstimateCreationGas 估算 createAccount(owner, salt)，返回 ceil(gas * 1.3)
func (e *Estimator) EstimateCreationGas(ctx context.Context, factory, owner common.Address, salt *big.Int) (*big.Int, error) {
	if salt == nil {
		salt = userop.AccountSalt
	}
	data, err := contracts.SimpleAccountFactory.Pack("createAccount", owner, salt)
	if err != nil {
		return nil, fmt.Errorf("error packing createAccount: %w", err)
	}
	gas, err := e.node.EstimateGas(ctx, ethereum.CallMsg{From: owner, To: &factory, Data: data})
	if err != nil {
		return nil, err
	}
	return ApplyCushion(gas), nil
}

// EstimateBatchDeployGas 估算 deployTokens(params)，同样加 30% 余量
func (e *Estimator) EstimateBatchDeployGas(ctx context.Context, tokenFactory common.Address, tokens []models.TokenParam, caller common.Address) (*big.Int, error) {
	data, err := userop.BuildDeployTokensCall(tokens)
	if err != nil {
		return nil, err
	}
	gas, err := e.node.EstimateGas(ctx, ethereum.CallMsg{From: caller, To: &tokenFactory, Data: data})
	if err != nil {
		return nil, err
	}
	return ApplyCushion(gas), nil
}

// ApplyCushion ceil(gas * 13 / 10)
func ApplyCushion(gas uint64) *big.Int {
	return mulRatioCeil(new(big.Int).SetUint64(gas), 13, 10)
}

// BuildGasPlan 根据手续费数据和批量大小构造 gas 预算。CallGasLimit 由调用方填入。
func BuildGasPlan(fees *FeeData, batchSize int, isNewAccount bool) Plan {
	plan := Plan{
		MaxFeePerGas:         new(big.Int).Set(DefaultMaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(DefaultMaxPriorityFeePerGas),
		VerificationGasLimit: big.NewInt(ExistingAccountVerificationGasLimit),
		CallGasLimit:         new(big.Int),
	}
	if fees != nil {
		if fees.MaxFeePerGas != nil {
			plan.MaxFeePerGas = new(big.Int).Set(fees.MaxFeePerGas)
		}
		if fees.MaxPriorityFeePerGas != nil {
			plan.MaxPriorityFeePerGas = new(big.Int).Set(fees.MaxPriorityFeePerGas)
		}
	}
	if isNewAccount {
		plan.VerificationGasLimit = big.NewInt(NewAccountVerificationGasLimit)
	}
	pvg := new(big.Int).Mul(big.NewInt(int64(batchSize)), big.NewInt(perTokenPreVerificationGas))
	plan.PreVerificationGas = pvg.Add(pvg, big.NewInt(basePreVerificationGas))
	return plan
}

// TotalGas preVerificationGas + verificationGasLimit + callGasLimit
func (p Plan) TotalGas() *big.Int {
	total := new(big.Int).Add(p.PreVerificationGas, p.VerificationGasLimit)
	return total.Add(total, p.CallGasLimit)
}

// RequiredPrefund totalGas * maxFeePerGas
func (p Plan) RequiredPrefund() *big.Int {
	return new(big.Int).Mul(p.TotalGas(), p.MaxFeePerGas)
}

// RequiredTopUp 存款严格大于 requiredPrefund 时返回 nil，
// 否则返回 ceil((requiredPrefund - deposit) * 1.10)。
func RequiredTopUp(currentDeposit, verificationGasLimit, preVerificationGas, callGasLimit, maxFeePerGas *big.Int) *big.Int {
	plan := Plan{
		VerificationGasLimit: verificationGasLimit,
		PreVerificationGas:   preVerificationGas,
		CallGasLimit:         callGasLimit,
		MaxFeePerGas:         maxFeePerGas,
	}
	return plan.TopUp(currentDeposit)
}

// TopUp 见 RequiredTopUp
func (p Plan) TopUp(currentDeposit *big.Int) *big.Int {
	deposit := currentDeposit
	if deposit == nil {
		deposit = new(big.Int)
	}
	required := p.RequiredPrefund()
	if deposit.Cmp(required) > 0 {
		return nil
	}
	shortfall := new(big.Int).Sub(required, deposit)
	return mulRatioCeil(shortfall, 110, 100)
}

func mulRatioCeil(v *big.Int, num, den int64) *big.Int {
	n := new(big.Int).Mul(v, big.NewInt(num))
	d := big.NewInt(den)
	q, m := new(big.Int).QuoRem(n, d, new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
