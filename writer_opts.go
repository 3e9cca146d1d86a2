package zipfix

import (
	"log/slog"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/zipfix/internal/file"
)

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	logger     *slog.Logger
	level      int
	bufferSize int
}

func newWriterConfig(opts []WriterOption) writerConfig {
	cfg := writerConfig{
		level:      flate.DefaultCompression,
		bufferSize: file.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets a logger for the writer. Each registered entry is logged
// at debug level. Logging is off when no logger is set.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(cfg *writerConfig) {
		cfg.logger = logger
	}
}

// WithCompressionLevel sets the deflate level used by CompressionDeflate
// writers, from flate.HuffmanOnly (-2) to flate.BestCompression (9).
// The default is flate.DefaultCompression.
func WithCompressionLevel(level int) WriterOption {
	return func(cfg *writerConfig) {
		cfg.level = level
	}
}

// WithBufferSize sets the chunk size used when copying entries (default 4 KiB).
// Values <= 0 select the default.
func WithBufferSize(n int) WriterOption {
	return func(cfg *writerConfig) {
		if n <= 0 {
			n = file.DefaultBufferSize
		}
		cfg.bufferSize = n
	}
}
