package core

import (
	"github.com/google/uuid"
)

// TaskID identifies a submitted unit of work in logs, history and metrics.
type TaskID string

func (id TaskID) String() string {
	return string(id)
}

// GenerateTaskID returns a short random identifier. Eight hex characters of
// a UUID are plenty for correlating log lines without bloating them.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New().String()[:8])
}
