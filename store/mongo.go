package store

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/olowe/batchmint-4337/models"
)

const deploymentsCollection = "deployments"

// Mongo 部署历史存在 deployments 集合中
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongo 使用已连接的客户端并创建 (owner, startedAt) 索引
func NewMongo(ctx context.Context, client *mongo.Client, database string) (*Mongo, error) {
	coll := client.Database(database).Collection(deploymentsCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}, {Key: "startedAt", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating deployments index: %w", err)
	}
	return &Mongo{client: client, collection: coll}, nil
}

// Save 保存记录
func (s *Mongo) Save(ctx context.Context, rec models.DeploymentRecord) error {
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("error inserting deployment %s: %w", rec.ID, err)
	}
	return nil
}

// List 见 Store
func (s *Mongo) List(ctx context.Context, owner common.Address, limit int) ([]models.DeploymentRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))

	cursor, err := s.collection.Find(ctx, bson.M{"owner": owner.Hex()}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying deployments: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.DeploymentRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding deployments: %w", err)
	}
	return records, nil
}

// Close 断开连接
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
