package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/chain"
	"github.com/olowe/batchmint-4337/config"
	"github.com/olowe/batchmint-4337/gas"
	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/receipt"
	"github.com/olowe/batchmint-4337/signer"
	"github.com/olowe/batchmint-4337/userop"
)

// nonceKey EntryPoint nonce 的固定子键
var nonceKey = big.NewInt(0)

// Options Deployer 的依赖
type Options struct {
	Backend chain.Backend
	// Signer owner EOA 的签名者，为空时部署不可用
	Signer  signer.Signer
	ChainID *big.Int
	// Network 当前链的合约地址；Available 为 false 表示该链未配置
	Network   config.NetworkContracts
	Available bool

	Guard     Guard
	Logger    zerolog.Logger
	Observers []Observer
}

// Deployer 批量代币部署流水线。每次调用 Deploy / Relay 都是一次独立的尝试，
// 不会在尝试之间保留阶段状态，也不会自动重试。
type Deployer struct {
	backend   chain.Backend
	signer    signer.Signer
	chainID   *big.Int
	network   config.NetworkContracts
	available bool
	guard     Guard
	logger    zerolog.Logger
	observers []Observer

	entryPoint  *chain.EntryPoint
	factory     *chain.AccountFactory
	estimator   *gas.Estimator
	coordinator *signer.Coordinator
	transactor  *chain.Transactor
}

// NewDeployer 创建部署流水线
func NewDeployer(opts Options) *Deployer {
	guard := opts.Guard
	if guard == nil {
		guard = NewMemoryGuard()
	}
	d := &Deployer{
		backend:   opts.Backend,
		signer:    opts.Signer,
		chainID:   opts.ChainID,
		network:   opts.Network,
		available: opts.Available,
		guard:     guard,
		logger:    opts.Logger,
		observers: opts.Observers,

		entryPoint: chain.NewEntryPoint(opts.Backend, opts.Network.EntryPoint),
		factory:    chain.NewAccountFactory(opts.Backend, opts.Network.SimpleAccountFactory),
		estimator:  gas.NewEstimator(opts.Backend),
	}
	d.coordinator = signer.NewCoordinator(d.entryPoint, opts.Signer, opts.ChainID, opts.Logger)
	if opts.Signer != nil {
		d.transactor = chain.NewTransactor(opts.Backend, opts.Signer, opts.ChainID)
	}
	return d
}

// ChainID 当前链
func (d *Deployer) ChainID() uint64 {
	return d.chainID.Uint64()
}

// Network 当前链的合约地址
func (d *Deployer) Network() config.NetworkContracts {
	return d.network
}

// Owner owner EOA；没有签名者时返回零地址
func (d *Deployer) Owner() common.Address {
	if d.signer == nil {
		return common.Address{}
	}
	return d.signer.Address()
}

// Available 部署在当前链上是否可用
func (d *Deployer) Available() bool {
	return d.ready() == nil
}

func (d *Deployer) ready() error {
	if !d.available {
		return fmt.Errorf("%w: chain %s is not configured", ErrOperationNotAvailable, d.chainID)
	}
	if missing := d.network.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrOperationNotAvailable, strings.Join(missing, ", "))
	}
	if d.signer == nil {
		return fmt.Errorf("%w: no owner account", ErrOperationNotAvailable)
	}
	return nil
}

// Deploy 执行一次完整的部署尝试。返回的 Result 总是非空；失败时 error 与 Result.Err 相同，
// Result.Outcome 中带有可展示的错误信息。
func (d *Deployer) Deploy(ctx context.Context, tokens []models.TokenParam, onStage StageFunc) (*Result, error) {
	a := newAttempt(d.ChainID(), onStage, d.observers, d.logger)
	res := d.deploy(ctx, a, tokens)
	return res, res.Err
}

func (d *Deployer) deploy(ctx context.Context, a *attempt, tokens []models.TokenParam) *Result {
	// 配置问题在进入 building 之前报告
	if err := d.ready(); err != nil {
		return a.fail(err)
	}
	if len(tokens) == 0 {
		return a.fail(ErrNoTokens)
	}
	if err := a.advance(models.StageBuilding); err != nil {
		return a.fail(err)
	}

	owner := d.signer.Address()
	a.result.Owner = owner

	account, err := d.factory.GetAddress(ctx, owner, userop.AccountSalt)
	if err != nil {
		return a.fail(fmt.Errorf("error resolving smart account: %w", err))
	}
	if account == (common.Address{}) {
		return a.fail(fmt.Errorf("%w: smart account address unresolved", ErrOperationNotAvailable))
	}
	a.setSmartAccount(account)

	release, err := d.guard.Acquire(ctx, GuardKey(d.ChainID(), account))
	if err != nil {
		return a.fail(err)
	}
	defer release()

	op, plan, err := d.build(ctx, a, owner, account, tokens)
	if err != nil {
		return a.fail(err)
	}

	deposit, err := d.entryPoint.BalanceOf(ctx, account)
	if err != nil {
		return a.fail(fmt.Errorf("error reading deposit: %w", err))
	}
	topUp := plan.TopUp(deposit)
	a.logger.Debug().Stringer("deposit", deposit).Stringer("required_prefund", plan.RequiredPrefund()).Msg("deposit checked")

	if err := a.advance(models.StageSigning); err != nil {
		return a.fail(err)
	}
	signed, err := d.sign(ctx, op)
	if err != nil {
		return a.fail(err)
	}

	fees := chain.Fees{MaxFeePerGas: plan.MaxFeePerGas, MaxPriorityFeePerGas: plan.MaxPriorityFeePerGas}

	if topUp != nil && topUp.Sign() > 0 {
		a.result.PrefundAmount = topUp
		if err := d.prefund(ctx, a, account, topUp, fees); err != nil {
			return a.fail(err)
		}
	}

	return d.handleOps(ctx, a, signed, owner, fees)
}

// build 组装未签名的 UserOperation 和 gas 预算
func (d *Deployer) build(ctx context.Context, a *attempt, owner, account common.Address, tokens []models.TokenParam) (userop.UserOperation, gas.Plan, error) {
	deployed, err := chain.IsDeployed(ctx, d.backend, account)
	if err != nil {
		return userop.UserOperation{}, gas.Plan{}, err
	}

	initCode, err := userop.BuildInitCode(d.network.SimpleAccountFactory, owner, userop.AccountSalt, deployed)
	if err != nil {
		return userop.UserOperation{}, gas.Plan{}, err
	}
	callData, err := userop.BuildCallData(d.network.BatchMintTokenFactory, tokens)
	if err != nil {
		return userop.UserOperation{}, gas.Plan{}, err
	}

	nonce, err := d.entryPoint.GetNonce(ctx, account, nonceKey)
	if err != nil {
		return userop.UserOperation{}, gas.Plan{}, fmt.Errorf("error reading nonce: %w", err)
	}

	fees, err := chain.SuggestFees(ctx, d.backend)
	if err != nil {
		a.logger.Warn().Err(err).Msg("fee data unavailable, using defaults")
		fees = nil
	}
	plan := gas.BuildGasPlan(fees, len(tokens), !deployed)

	callGas, err := d.estimator.EstimateBatchDeployGas(ctx, d.network.BatchMintTokenFactory, tokens, owner)
	if err != nil {
		return userop.UserOperation{}, gas.Plan{}, fmt.Errorf("error estimating deployTokens gas: %w", err)
	}
	plan.CallGasLimit = callGas

	limits, err := userop.PackGasLimits(plan.VerificationGasLimit, plan.CallGasLimit)
	if err != nil {
		return userop.UserOperation{}, gas.Plan{}, err
	}
	gasFees, err := userop.PackGasFees(plan.MaxPriorityFeePerGas, plan.MaxFeePerGas)
	if err != nil {
		return userop.UserOperation{}, gas.Plan{}, err
	}

	a.logger.Debug().
		Bool("new_account", !deployed).
		Stringer("nonce", nonce).
		Stringer("verification_gas_limit", plan.VerificationGasLimit).
		Stringer("call_gas_limit", plan.CallGasLimit).
		Stringer("pre_verification_gas", plan.PreVerificationGas).
		Stringer("max_fee_per_gas", plan.MaxFeePerGas).
		Stringer("max_priority_fee_per_gas", plan.MaxPriorityFeePerGas).
		Msg("user operation built")

	op := userop.UserOperation{
		Sender:             account,
		Nonce:              nonce,
		InitCode:           initCode,
		CallData:           callData,
		AccountGasLimits:   limits,
		PreVerificationGas: plan.PreVerificationGas,
		GasFees:            gasFees,
		PaymasterAndData:   []byte{},
		Signature:          []byte{},
	}
	return op, plan, nil
}

func (d *Deployer) sign(ctx context.Context, op userop.UserOperation) (userop.UserOperation, error) {
	hash, err := d.coordinator.OperationHash(ctx, op)
	if err != nil {
		return userop.UserOperation{}, fmt.Errorf("error getting user operation hash: %w", err)
	}
	sig, err := d.coordinator.Sign(ctx, op, hash)
	if err != nil {
		return userop.UserOperation{}, err
	}
	return op.WithSignature(sig), nil
}

// prefund 向 EntryPoint 存入 topUp，等待上链后才继续
func (d *Deployer) prefund(ctx context.Context, a *attempt, account common.Address, topUp *big.Int, fees chain.Fees) error {
	call, err := d.entryPoint.DepositTo(account, topUp)
	if err != nil {
		return err
	}

	if err := a.advance(models.StageSimulatingPrefund); err != nil {
		return err
	}
	if err := d.transactor.Simulate(ctx, call); err != nil {
		return err
	}

	if err := a.advance(models.StageSubmittingPrefund); err != nil {
		return err
	}
	tx, err := d.transactor.Submit(ctx, call, fees)
	if err != nil {
		return err
	}
	a.result.PrefundTx = tx.Hash()
	a.logger.Info().Str("tx_hash", tx.Hash().Hex()).Stringer("amount", topUp).Msg("prefund submitted")

	if err := a.advance(models.StageMiningPrefund); err != nil {
		return err
	}
	_, err = d.transactor.WaitMined(ctx, tx)
	return err
}

// handleOps 模拟、发送 handleOps 并解析回执
func (d *Deployer) handleOps(ctx context.Context, a *attempt, op userop.UserOperation, beneficiary common.Address, fees chain.Fees) *Result {
	call, err := d.entryPoint.HandleOps([]userop.UserOperation{op}, beneficiary)
	if err != nil {
		return a.fail(err)
	}

	if err := a.advance(models.StageSimulatingHandleOps); err != nil {
		return a.fail(err)
	}
	if err := d.transactor.Simulate(ctx, call); err != nil {
		return a.fail(err)
	}

	if err := a.advance(models.StageSubmittingHandleOps); err != nil {
		return a.fail(err)
	}
	tx, err := d.transactor.Submit(ctx, call, fees)
	if err != nil {
		return a.fail(err)
	}
	a.result.HandleOpsTx = tx.Hash()
	a.logger.Info().Str("tx_hash", tx.Hash().Hex()).Msg("handleOps submitted")

	if err := a.advance(models.StageMiningHandleOps); err != nil {
		return a.fail(err)
	}
	rcpt, err := d.transactor.WaitMined(ctx, tx)
	if err != nil {
		return a.fail(err)
	}

	return a.succeed(receipt.Parse(rcpt.Logs).Outcome(tx.Hash()))
}

// Relay 提交外部已签名的 UserOperation，只执行 handleOps 部分：
// simulating-handleOps -> submitting-handleOps -> mining-handleOps -> success
func (d *Deployer) Relay(ctx context.Context, op userop.UserOperation, onStage StageFunc) (*Result, error) {
	a := newAttempt(d.ChainID(), onStage, d.observers, d.logger)
	res := d.relay(ctx, a, op)
	return res, res.Err
}

func (d *Deployer) relay(ctx context.Context, a *attempt, op userop.UserOperation) *Result {
	if err := d.ready(); err != nil {
		return a.fail(err)
	}
	if !op.Signed() {
		return a.fail(fmt.Errorf("%w: user operation is not signed", ErrOperationNotAvailable))
	}
	a.result.Owner = d.signer.Address()
	a.setSmartAccount(op.Sender)

	release, err := d.guard.Acquire(ctx, GuardKey(d.ChainID(), op.Sender))
	if err != nil {
		return a.fail(err)
	}
	defer release()

	feeData, err := chain.SuggestFees(ctx, d.backend)
	if err != nil {
		a.logger.Warn().Err(err).Msg("fee data unavailable, using defaults")
		feeData = nil
	}
	plan := gas.BuildGasPlan(feeData, 1, false)
	fees := chain.Fees{MaxFeePerGas: plan.MaxFeePerGas, MaxPriorityFeePerGas: plan.MaxPriorityFeePerGas}

	return d.handleOps(ctx, a, op, d.signer.Address(), fees)
}

// AccountInfo 智能账户的概况
type AccountInfo struct {
	Owner        common.Address
	SmartAccount common.Address
	Deployed     bool
	Deposit      *big.Int
	// CreationGas 未部署时 createAccount 的估算值（已加余量）
	CreationGas *big.Int
}

// Account 查询 owner 对应的智能账户、部署状态和 EntryPoint 存款
func (d *Deployer) Account(ctx context.Context) (*AccountInfo, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	owner := d.signer.Address()

	account, err := d.factory.GetAddress(ctx, owner, userop.AccountSalt)
	if err != nil {
		return nil, fmt.Errorf("error resolving smart account: %w", err)
	}
	if account == (common.Address{}) {
		return nil, fmt.Errorf("%w: smart account address unresolved", ErrOperationNotAvailable)
	}

	deployed, err := chain.IsDeployed(ctx, d.backend, account)
	if err != nil {
		return nil, err
	}
	deposit, err := d.entryPoint.BalanceOf(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("error reading deposit: %w", err)
	}

	info := &AccountInfo{Owner: owner, SmartAccount: account, Deployed: deployed, Deposit: deposit}
	if !deployed {
		creation, err := d.estimator.EstimateCreationGas(ctx, d.network.SimpleAccountFactory, owner, userop.AccountSalt)
		if err != nil {
			// 估算失败不影响其余信息
			d.logger.Warn().Err(err).Str("smart_account", account.Hex()).Msg("error estimating account creation gas")
		} else {
			info.CreationGas = creation
		}
	}
	return info, nil
}

// Tokens 从代币工厂的 TokenDeployed 事件中查询智能账户部署过的全部代币。
// 起始区块取网络配置中的 DeployBlock。
func (d *Deployer) Tokens(ctx context.Context) ([]models.DeployedToken, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	account, err := d.factory.GetAddress(ctx, d.signer.Address(), userop.AccountSalt)
	if err != nil {
		return nil, fmt.Errorf("error resolving smart account: %w", err)
	}
	if account == (common.Address{}) {
		return nil, fmt.Errorf("%w: smart account address unresolved", ErrOperationNotAvailable)
	}

	q := receipt.CreatorQuery(d.network.BatchMintTokenFactory, account, d.network.DeployBlock)
	logs, err := d.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error filtering TokenDeployed logs: %w", err)
	}
	ptrs := make([]*types.Log, len(logs))
	for i := range logs {
		ptrs[i] = &logs[i]
	}
	tokens := receipt.Parse(ptrs).Deployed
	d.logger.Debug().Str("smart_account", account.Hex()).Int("tokens", len(tokens)).Msg("deployed tokens listed")
	return tokens, nil
}

// IsUnavailable 错误是否表示部署不可用（配置问题）
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrOperationNotAvailable)
}
