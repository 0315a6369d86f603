package models

import (
	"fmt"
	"math/big"
)

// TokenParam 一个待部署代币的参数
type TokenParam struct {
	Name        string
	Symbol      string
	TotalSupply *big.Int
}

// TokenParamRequest 表单/文件中的代币参数，totalSupply 使用十进制字符串
type TokenParamRequest struct {
	Name        string `json:"name" binding:"required" validate:"required"`
	Symbol      string `json:"symbol" binding:"required" validate:"required"`
	TotalSupply string `json:"totalSupply" binding:"required,numeric" validate:"required,numeric"`
}

// DeployTokensRequest POST /deployments 的请求体
type DeployTokensRequest struct {
	Tokens []TokenParamRequest `json:"tokens" binding:"required,min=1,dive" validate:"required,min=1,dive"`
}

// ToTokenParam 转换为链上参数
func (r TokenParamRequest) ToTokenParam() (TokenParam, error) {
	supply, ok := new(big.Int).SetString(r.TotalSupply, 10)
	if !ok || supply.Sign() < 0 {
		return TokenParam{}, fmt.Errorf("invalid totalSupply %q for %s", r.TotalSupply, r.Symbol)
	}
	if supply.BitLen() > 256 {
		return TokenParam{}, fmt.Errorf("totalSupply for %s exceeds uint256", r.Symbol)
	}
	return TokenParam{Name: r.Name, Symbol: r.Symbol, TotalSupply: supply}, nil
}

// ToTokenParams 批量转换
func (r DeployTokensRequest) ToTokenParams() ([]TokenParam, error) {
	params := make([]TokenParam, 0, len(r.Tokens))
	for _, t := range r.Tokens {
		p, err := t.ToTokenParam()
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// DeployedToken TokenDeployed 事件对应的结果
type DeployedToken struct {
	ID           string `json:"id" bson:"id"`
	Name         string `json:"name" bson:"name"`
	Symbol       string `json:"symbol" bson:"symbol"`
	TokenAddress string `json:"tokenAddress" bson:"tokenAddress"`
}

// SkippedToken TokenSkipped 事件对应的结果
type SkippedToken struct {
	ID     string `json:"id" bson:"id"`
	Name   string `json:"name" bson:"name"`
	Symbol string `json:"symbol" bson:"symbol"`
	Reason string `json:"reason" bson:"reason"`
}

// DeploymentOutcome 一次部署尝试的最终结果
type DeploymentOutcome struct {
	Status          string          `json:"status"`
	DeployedTokens  []DeployedToken `json:"deployedTokens"`
	SkippedTokens   []SkippedToken  `json:"skippedTokens"`
	Error           string          `json:"error,omitempty"`
	TransactionHash string          `json:"transactionHash,omitempty"`
}

// ErrorOutcome 构造失败结果，列表为空而非 nil
func ErrorOutcome(message string) DeploymentOutcome {
	return DeploymentOutcome{
		Status:         OutcomeError,
		DeployedTokens: []DeployedToken{},
		SkippedTokens:  []SkippedToken{},
		Error:          message,
	}
}
