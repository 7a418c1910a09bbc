package extraction

import (
	"time"

	"github.com/splitlearn/splitlearn-backend/internal/platform/envutil"
)

// Config carries the pipeline knobs. Values come from the environment once at
// startup; strategies receive the resolved struct.
type Config struct {
	// Model overrides the generative model identifier ("" keeps the client
	// default).
	Model string
	// BatchMode selects the multi-document strategy; off falls back to
	// per-slide processing.
	BatchMode bool
	// ChunkSize is the number of slides covered by one batch extraction call.
	ChunkSize int
	// PoolSize is the worker-bucket count for individual mode, clamped 1..6.
	PoolSize int
	// Rerank toggles generative relevance ranking of video candidates.
	Rerank bool
	// ChunkDelay is the pause between chunks (or pool buckets) to stay under
	// external rate limits.
	ChunkDelay time.Duration
}

func ConfigFromEnv() Config {
	chunkSize := envutil.Int("BATCH_CHUNK_SIZE", 5)
	if chunkSize < 1 {
		chunkSize = 1
	}
	poolSize := envutil.Int("POOL_CONCURRENCY", 3)
	if poolSize < 1 {
		poolSize = 1
	}
	if poolSize > 6 {
		poolSize = 6
	}
	return Config{
		Model:      envutil.String("GEMINI_MODEL", ""),
		BatchMode:  envutil.Bool("BATCH_MODE", true),
		ChunkSize:  chunkSize,
		PoolSize:   poolSize,
		Rerank:     envutil.Bool("RERANK_VIDEOS", true),
		ChunkDelay: time.Duration(envutil.Int("CHUNK_DELAY_MS", 1000)) * time.Millisecond,
	}
}
