// Package receipt 把 handleOps 交易回执中的事件解码为部署结果。
package receipt

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/olowe/batchmint-4337/contracts"
	"github.com/olowe/batchmint-4337/models"
)

var (
	tokenDeployed = contracts.BatchMintTokenFactory.Events["TokenDeployed"]
	tokenSkipped  = contracts.BatchMintTokenFactory.Events["TokenSkipped"]
)

type deployedEvent struct {
	Name   string
	Symbol string
}

type skippedEvent struct {
	Name   string
	Symbol string
	Reason string
}

// CreatorQuery 查询 creator 通过 factory 部署过的全部代币，从 fromBlock 到最新区块
func CreatorQuery(factory, creator common.Address, fromBlock uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{factory},
		Topics: [][]common.Hash{
			{tokenDeployed.ID},
			{common.BytesToHash(creator.Bytes())},
		},
	}
}

// Result 解码后的代币结果，列表保持日志顺序
type Result struct {
	Deployed []models.DeployedToken
	Skipped  []models.SkippedToken
}

// Parse 按 TokenDeployed / TokenSkipped 两种事件解码日志。
// 不匹配或无法解码的日志直接忽略。
func Parse(logs []*types.Log) Result {
	res := Result{
		Deployed: []models.DeployedToken{},
		Skipped:  []models.SkippedToken{},
	}
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		switch l.Topics[0] {
		case tokenDeployed.ID:
			tok, err := decodeDeployed(l)
			if err != nil {
				continue
			}
			tok.ID = fmt.Sprintf("Deployed%d", len(res.Deployed))
			res.Deployed = append(res.Deployed, tok)
		case tokenSkipped.ID:
			tok, err := decodeSkipped(l)
			if err != nil {
				continue
			}
			tok.ID = fmt.Sprintf("Skipped%d", len(res.Skipped))
			res.Skipped = append(res.Skipped, tok)
		}
	}
	return res
}

// Outcome 成功的部署结果
func (r Result) Outcome(txHash common.Hash) models.DeploymentOutcome {
	return models.DeploymentOutcome{
		Status:          models.OutcomeOK,
		DeployedTokens:  r.Deployed,
		SkippedTokens:   r.Skipped,
		TransactionHash: txHash.Hex(),
	}
}

func decodeDeployed(l *types.Log) (models.DeployedToken, error) {
	// topics: signature, creator, token
	if len(l.Topics) != 3 {
		return models.DeployedToken{}, fmt.Errorf("unexpected topic count %d", len(l.Topics))
	}
	var ev deployedEvent
	if err := unpack(tokenDeployed, &ev, l.Data); err != nil {
		return models.DeployedToken{}, err
	}
	return models.DeployedToken{
		Name:         ev.Name,
		Symbol:       ev.Symbol,
		TokenAddress: common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
	}, nil
}

func decodeSkipped(l *types.Log) (models.SkippedToken, error) {
	if len(l.Topics) != 2 {
		return models.SkippedToken{}, fmt.Errorf("unexpected topic count %d", len(l.Topics))
	}
	var ev skippedEvent
	if err := unpack(tokenSkipped, &ev, l.Data); err != nil {
		return models.SkippedToken{}, err
	}
	return models.SkippedToken{Name: ev.Name, Symbol: ev.Symbol, Reason: ev.Reason}, nil
}

func unpack(event abi.Event, out interface{}, data []byte) error {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return err
	}
	return event.Inputs.NonIndexed().Copy(out, values)
}
