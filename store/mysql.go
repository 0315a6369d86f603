package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/olowe/batchmint-4337/models"
)

const createDeploymentsTable = `
CREATE TABLE IF NOT EXISTS deployments (
	id                CHAR(36)     NOT NULL PRIMARY KEY,
	chain_id          BIGINT UNSIGNED NOT NULL,
	owner             CHAR(42)     NOT NULL,
	smart_account     CHAR(42)     NOT NULL,
	status            VARCHAR(16)  NOT NULL,
	error             TEXT,
	tx_hash           CHAR(66),
	prefund_tx_hash   CHAR(66),
	deployed_tokens   JSON         NOT NULL,
	skipped_tokens    JSON         NOT NULL,
	stages            JSON         NOT NULL,
	started_at        DATETIME(3)  NOT NULL,
	finished_at       DATETIME(3)  NOT NULL,
	INDEX idx_owner_started (owner, started_at)
)`

// MySQL 部署历史存在 deployments 表中，代币列表与阶段序列以 JSON 列保存
type MySQL struct {
	db *sql.DB
}

// NewMySQL 使用已连接的数据库并确保表存在
func NewMySQL(ctx context.Context, db *sql.DB) (*MySQL, error) {
	if _, err := db.ExecContext(ctx, createDeploymentsTable); err != nil {
		return nil, fmt.Errorf("error creating deployments table: %w", err)
	}
	return &MySQL{db: db}, nil
}

// Save 保存记录
func (s *MySQL) Save(ctx context.Context, rec models.DeploymentRecord) error {
	deployed, err := json.Marshal(rec.DeployedTokens)
	if err != nil {
		return err
	}
	skipped, err := json.Marshal(rec.SkippedTokens)
	if err != nil {
		return err
	}
	stages, err := json.Marshal(rec.Stages)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deployments
			(id, chain_id, owner, smart_account, status, error, tx_hash, prefund_tx_hash,
			 deployed_tokens, skipped_tokens, stages, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ChainID, rec.Owner, rec.SmartAccount, rec.Status,
		nullString(rec.Error), nullString(rec.TransactionHash), nullString(rec.PrefundTxHash),
		deployed, skipped, stages, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting deployment %s: %w", rec.ID, err)
	}
	return nil
}

// List 见 Store
func (s *MySQL) List(ctx context.Context, owner common.Address, limit int) ([]models.DeploymentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chain_id, owner, smart_account, status, error, tx_hash, prefund_tx_hash,
			deployed_tokens, skipped_tokens, stages, started_at, finished_at
		FROM deployments WHERE owner = ? ORDER BY started_at DESC LIMIT ?`,
		owner.Hex(), clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying deployments: %w", err)
	}
	defer rows.Close()

	records := []models.DeploymentRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close 关闭连接
func (s *MySQL) Close(context.Context) error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (models.DeploymentRecord, error) {
	var (
		rec                           models.DeploymentRecord
		errMsg, txHash, prefundTxHash sql.NullString
		deployed, skipped, stages     []byte
	)
	if err := rows.Scan(
		&rec.ID, &rec.ChainID, &rec.Owner, &rec.SmartAccount, &rec.Status,
		&errMsg, &txHash, &prefundTxHash,
		&deployed, &skipped, &stages, &rec.StartedAt, &rec.FinishedAt,
	); err != nil {
		return rec, fmt.Errorf("error scanning deployment: %w", err)
	}
	rec.Error = errMsg.String
	rec.TransactionHash = txHash.String
	rec.PrefundTxHash = prefundTxHash.String

	if err := json.Unmarshal(deployed, &rec.DeployedTokens); err != nil {
		return rec, fmt.Errorf("error decoding deployed tokens: %w", err)
	}
	if err := json.Unmarshal(skipped, &rec.SkippedTokens); err != nil {
		return rec, fmt.Errorf("error decoding skipped tokens: %w", err)
	}
	if err := json.Unmarshal(stages, &rec.Stages); err != nil {
		return rec, fmt.Errorf("error decoding stages: %w", err)
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
