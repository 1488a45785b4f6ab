package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

// TopicDLQ receives jobs that exhausted their retries or can never succeed.
const TopicDLQ = "jobs.dlq"

// JobTopic returns the topic a job name is published on.
func JobTopic(name domain.JobName) string {
	return "jobs." + string(name)
}

// JobTopics returns the topics for every job the worker handles.
func JobTopics() []string {
	topics := make([]string, len(domain.AllJobs))
	for i, name := range domain.AllJobs {
		topics[i] = JobTopic(name)
	}
	return topics
}

// JobQueue enqueues named jobs with JSON-encoded arguments.
type JobQueue struct {
	producer Producer
}

// NewJobQueue wraps a producer with the job envelope encoding.
func NewJobQueue(producer Producer) *JobQueue {
	return &JobQueue{producer: producer}
}

// Enqueue publishes a job. key groups jobs for the same task on one partition.
func (q *JobQueue) Enqueue(ctx context.Context, name domain.JobName, key string, args any) error {
	job, err := domain.NewJob(name, args)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", name, err)
	}
	if err := q.producer.Publish(ctx, JobTopic(name), key, raw); err != nil {
		return fmt.Errorf("enqueue %s: %w", name, err)
	}
	telemetry.JobsEnqueued.WithLabelValues(string(name)).Inc()
	return nil
}
