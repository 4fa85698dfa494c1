package flow

import (
	"log/slog"
	"runtime"

	"github.com/TM9657/flow-like-sub010/internal/logging"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
)

// DefaultExecLimit caps how often one node may run within a single run.
const DefaultExecLimit = 128000

type runConfig struct {
	runID       string
	appID       string
	logger      *slog.Logger
	sender      intercom.Sender
	profile     *domain.Profile
	credentials *domain.Credentials
	event       *domain.TriggerEvent
	streamState bool
	logLevel    *domain.LogLevel
	execLimit   uint64
	concurrency int
	hooks       domain.LifecycleHooks
}

// RunOption configures a Run.
type RunOption func(*runConfig)

// WithRunID sets the run id instead of generating one.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithAppID tags the run with the application owning the board.
func WithAppID(id string) RunOption {
	return func(c *runConfig) {
		c.appID = id
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithSender streams events to the given sender.
func WithSender(s intercom.Sender) RunOption {
	return func(c *runConfig) {
		c.sender = s
	}
}

// WithProfile attaches the caller's profile.
func WithProfile(p *domain.Profile) RunOption {
	return func(c *runConfig) {
		c.profile = p
	}
}

// WithCredentials attaches run-scoped credentials.
func WithCredentials(cr *domain.Credentials) RunOption {
	return func(c *runConfig) {
		c.credentials = cr
	}
}

// WithTriggerEvent records the event that started the run.
func WithTriggerEvent(e *domain.TriggerEvent) RunOption {
	return func(c *runConfig) {
		c.event = e
	}
}

// WithStreamState streams node start/stop updates to the sender.
func WithStreamState(on bool) RunOption {
	return func(c *runConfig) {
		c.streamState = on
	}
}

// WithLogLevel overrides the board's log level for this run.
func WithLogLevel(l domain.LogLevel) RunOption {
	return func(c *runConfig) {
		c.logLevel = &l
	}
}

// WithExecLimit overrides DefaultExecLimit.
func WithExecLimit(n uint64) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.execLimit = n
		}
	}
}

// WithConcurrency bounds how many branches run at once. Defaults to the CPU count.
func WithConcurrency(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.LifecycleHooks) RunOption {
	return func(c *runConfig) {
		c.hooks = c.hooks.Merge(h)
	}
}

func newRunConfig(opts []RunOption) *runConfig {
	c := &runConfig{
		logger:      logging.NewNop(),
		execLimit:   DefaultExecLimit,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
