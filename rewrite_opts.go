package zipfix

import (
	"log/slog"
	"runtime"

	"github.com/meigma/zipfix/internal/file"
)

// RewriteOption configures Rewrite, RewriteFile and RewriteAll.
type RewriteOption func(*rewriteConfig)

type rewriteConfig struct {
	logger      *slog.Logger
	addressing  Addressing
	bufferSize  int
	verify      bool
	concurrency int
}

func newRewriteConfig(opts []RewriteOption) rewriteConfig {
	cfg := rewriteConfig{
		addressing:  Zip64AsNeeded,
		bufferSize:  file.DefaultBufferSize,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (cfg *rewriteConfig) log() *slog.Logger {
	if cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return cfg.logger
}

func (cfg *rewriteConfig) writerOptions() []WriterOption {
	return []WriterOption{
		WithLogger(cfg.logger),
		WithBufferSize(cfg.bufferSize),
	}
}

// RewriteWithLogger sets a logger. Every entry written is logged at debug
// level. Logging is off when no logger is set.
func RewriteWithLogger(logger *slog.Logger) RewriteOption {
	return func(cfg *rewriteConfig) {
		cfg.logger = logger
	}
}

// RewriteWithAddressing sets the ZIP64 policy of the output (default
// Zip64AsNeeded).
func RewriteWithAddressing(a Addressing) RewriteOption {
	return func(cfg *rewriteConfig) {
		cfg.addressing = a
	}
}

// RewriteWithBufferSize sets the payload copy chunk size (default 4 KiB).
// Values <= 0 select the default.
func RewriteWithBufferSize(n int) RewriteOption {
	return func(cfg *rewriteConfig) {
		if n <= 0 {
			n = file.DefaultBufferSize
		}
		cfg.bufferSize = n
	}
}

// RewriteWithVerify makes RewriteFile read back the output and check every
// entry with Verify before it replaces the destination.
func RewriteWithVerify(enabled bool) RewriteOption {
	return func(cfg *rewriteConfig) {
		cfg.verify = enabled
	}
}

// RewriteWithConcurrency bounds how many archives RewriteAll rewrites at
// once (default GOMAXPROCS). Values < 1 are treated as 1.
func RewriteWithConcurrency(n int) RewriteOption {
	return func(cfg *rewriteConfig) {
		if n < 1 {
			n = 1
		}
		cfg.concurrency = n
	}
}
