package pipeline

import (
	"context"
	"fmt"

	"pigeon/internal/broker"
	"pigeon/internal/constants"
	"pigeon/internal/logger"
	"pigeon/pkg/metrics"
	"pigeon/pkg/models"
)

// Service glues the broker to the executor: every inbound message is
// run through the pipeline and the transformed message is republished.
type Service struct {
	executor       *Executor
	producer       broker.Producer
	processedTopic string
	logger         logger.Logger
}

func NewService(executor *Executor, producer broker.Producer, processedTopic string, log logger.Logger) *Service {
	if processedTopic == "" {
		processedTopic = constants.DefaultProcessedTopic
	}
	return &Service{
		executor:       executor,
		producer:       producer,
		processedTopic: processedTopic,
		logger:         log,
	}
}

// Handle is the broker consumer callback. Agent failures are already
// absorbed by the executor; only publish failures propagate so the
// broker's retry/DLQ path can take over.
func (s *Service) Handle(ctx context.Context, msg models.Message) error {
	processed, result, err := s.executor.Execute(ctx, msg)
	if err != nil {
		return fmt.Errorf("pipeline execution failed: %w", err)
	}

	if result.Failed() > 0 {
		s.logger.WarnwCtx(ctx, "Message processed with degraded quality",
			"message_id", msg.ID,
			"failed_agents", result.Failed(),
		)
	}

	if err := s.producer.Publish(ctx, s.processedTopic, processed); err != nil {
		return fmt.Errorf("failed to publish processed message: %w", err)
	}
	metrics.KafkaMessagesWrittenTotal.WithLabelValues("pipeline-service", s.processedTopic).Inc()

	return nil
}
