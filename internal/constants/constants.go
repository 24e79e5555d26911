package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultInboundTopic   = "inbound_messages"
	DefaultProcessedTopic = "processed_messages"
)

const (
	DefaultMongoDBName = "pigeon"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Schedule defaults. A recurring schedule without an explicit send
// time fires at DefaultSendTime; a weekly schedule without explicit
// weekdays fires on DefaultWeekday.
const (
	DefaultSendTime = "09:00"
	DefaultWeekday  = time.Monday
	DefaultTimezone = "UTC"
)

// Redis key prefixes for the job queue.
const (
	JobQueueDelayedKey     = "jobs:delayed"
	JobQueueRecurringKey   = "jobs:recurring"
	JobQueueFailedKey      = "jobs:failed"
	JobQueueDataPrefix     = "jobs:data:"
	JobQueueCampaignPrefix = "jobs:campaign:"
)

const (
	DefaultJobAttempts          = 3
	DefaultJobBackoffInterval   = 5 * time.Second
	DefaultJobBackoffMultiplier = 2.0
)

const (
	DefaultSchedulerPollInterval = time.Second
)
