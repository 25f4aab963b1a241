package worker

import (
	"github.com/okian/healthscore/internal/adapters/mq/queue"
	"github.com/okian/healthscore/pkg/logger"
)

// Option applies a configuration option to the Committer.
type Option func(*Committer)

// WithName sets the committer name for identification and logging.
func WithName(name string) Option {
	return func(c *Committer) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets a custom logger for the committer.
func WithLogger(l logger.Logger) Option {
	return func(c *Committer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithGroupBy sets the hierarchy dimension written into each record's group key.
func WithGroupBy(dimension string) Option {
	return func(c *Committer) {
		if dimension != "" {
			c.groupBy = dimension
		}
	}
}

// WithOnCommit registers a callback invoked after each successful commit.
func WithOnCommit(fn func(j queue.Job, records int)) Option {
	return func(c *Committer) {
		c.onCommit = fn
	}
}
