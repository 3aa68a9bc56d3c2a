package graph

import "github.com/google/uuid"

// resumeLatest tells the executor to continue from the newest snapshot.
// Steps are 1-based, so the zero value is free to mean "latest".
const resumeLatest = 0

type invokeConfig struct {
	threadID    string
	resumeStep  int
	resumeValue any
	modes       []StreamMode
}

func newInvokeConfig(opts ...InvokeOption) invokeConfig {
	cfg := invokeConfig{
		threadID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// InvokeOption configures a single Invoke or Stream call.
type InvokeOption func(*invokeConfig)

// WithThreadID pins the invocation to a durable thread. Runs sharing a
// thread id share a checkpoint history; without this option every call
// gets a fresh random thread.
func WithThreadID(id string) InvokeOption {
	return func(cfg *invokeConfig) {
		cfg.threadID = id
	}
}

// WithResumeFromStep resumes the thread from the snapshot recorded at the
// given step instead of the latest one. Steps recorded after it are
// overwritten as the replay progresses.
func WithResumeFromStep(step int) InvokeOption {
	return func(cfg *invokeConfig) {
		cfg.resumeStep = step
	}
}

// WithResumeValue answers a pending interrupt on the thread. Nodes of the
// first resumed super-step observe the value through ResumeValue; later
// steps do not, so a re-raised interrupt is answered by a new invocation.
func WithResumeValue(v any) InvokeOption {
	return func(cfg *invokeConfig) {
		cfg.resumeValue = v
	}
}

// WithStreamModes selects which event kinds a Stream call emits. Ignored
// by Invoke. Defaults to values when no modes are given.
func WithStreamModes(modes ...StreamMode) InvokeOption {
	return func(cfg *invokeConfig) {
		cfg.modes = modes
	}
}
