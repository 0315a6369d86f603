package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/olowe/batchmint-4337/gas"
)

// baseFeeMultiplier 基础费用放大 1.2 倍，与常见钱包客户端的 estimateFeesPerGas 一致
const (
	baseFeeMultiplierNum = 12
	baseFeeMultiplierDen = 10
)

// SuggestFees 读取最新区块的 baseFee 与节点建议的小费，
// maxFeePerGas = ceil(baseFee * 1.2) + maxPriorityFeePerGas。
// 没有 baseFee 的链（London 之前）返回空的 FeeData，由 gas.BuildGasPlan 使用默认值。
func SuggestFees(ctx context.Context, b Backend) (*gas.FeeData, error) {
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error getting latest header: %w", err)
	}
	if head.BaseFee == nil {
		return &gas.FeeData{}, nil
	}
	tip, err := b.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting gas tip cap: %w", err)
	}

	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(baseFeeMultiplierNum))
	q, m := new(big.Int).QuoRem(maxFee, big.NewInt(baseFeeMultiplierDen), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	q.Add(q, tip)

	return &gas.FeeData{MaxFeePerGas: q, MaxPriorityFeePerGas: tip}, nil
}
