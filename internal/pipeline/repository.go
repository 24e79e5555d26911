package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is the task ledger. Tasks are written when an agent starts
// and finalized exactly once; they are never deleted here.
type Repository interface {
	SaveTask(ctx context.Context, task AgentTask) error
	FinalizeTask(ctx context.Context, id string, status TaskStatus, result map[string]interface{}, taskErr string) error
	GetTasksByAgent(ctx context.Context, agentID string, limit int64) ([]AgentTask, error)
	GetTasksByMessage(ctx context.Context, messageID string) ([]AgentTask, error)
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &MongoDBRepository{
		collection: db.Collection("agent_tasks"),
	}
}

func (r *MongoDBRepository) SaveTask(ctx context.Context, task AgentTask) error {
	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to insert agent task: %w", err)
	}
	return nil
}

// FinalizeTask moves a task out of processing. The filter guards the
// status so a finalized task cannot be finalized again.
func (r *MongoDBRepository) FinalizeTask(ctx context.Context, id string, status TaskStatus, result map[string]interface{}, taskErr string) error {
	if status != TaskCompleted && status != TaskFailed {
		return fmt.Errorf("invalid final task status: %s", status)
	}

	now := time.Now()
	update := bson.M{
		"status":       status,
		"completed_at": now,
	}
	if result != nil {
		update["result"] = result
	}
	if taskErr != "" {
		update["error"] = taskErr
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []TaskStatus{TaskPending, TaskProcessing}}},
		bson.M{"$set": update},
	)
	if err != nil {
		return fmt.Errorf("failed to finalize agent task: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("agent task %s not open for finalization", id)
	}
	return nil
}

func (r *MongoDBRepository) GetTasksByAgent(ctx context.Context, agentID string, limit int64) ([]AgentTask, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"agent_id": agentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []AgentTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

func (r *MongoDBRepository) GetTasksByMessage(ctx context.Context, messageID string) ([]AgentTask, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"message_id": messageID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []AgentTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}
