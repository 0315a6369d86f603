package models

import "time"

// DeploymentRecord 一次部署尝试的历史记录
type DeploymentRecord struct {
	ID              string          `json:"id" bson:"_id"`
	ChainID         uint64          `json:"chainId" bson:"chainId"`
	Owner           string          `json:"owner" bson:"owner"`
	SmartAccount    string          `json:"smartAccount" bson:"smartAccount"`
	Status          string          `json:"status" bson:"status"`
	Error           string          `json:"error,omitempty" bson:"error,omitempty"`
	TransactionHash string          `json:"transactionHash,omitempty" bson:"transactionHash,omitempty"`
	PrefundTxHash   string          `json:"prefundTransactionHash,omitempty" bson:"prefundTransactionHash,omitempty"`
	DeployedTokens  []DeployedToken `json:"deployedTokens" bson:"deployedTokens"`
	SkippedTokens   []SkippedToken  `json:"skippedTokens" bson:"skippedTokens"`
	Stages          []TxStage       `json:"stages" bson:"stages"`
	StartedAt       time.Time       `json:"startedAt" bson:"startedAt"`
	FinishedAt      time.Time       `json:"finishedAt" bson:"finishedAt"`
}
