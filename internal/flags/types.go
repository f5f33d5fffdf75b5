package flags

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("flag not found")
	ErrUnknownKey = errors.New("unknown flag key")
)

// Runtime settings that override the environment without a restart.
const (
	// KeyFailurePolicy selects what a failed refresh serves: "empty" or "stale".
	KeyFailurePolicy = "failure_policy"
	// KeyMaxProgress is the largest bonding ratio a listed launch may have.
	KeyMaxProgress = "max_progress"
)

type Flag struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
