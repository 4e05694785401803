package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full, explicitly typed service configuration. Unknown
// behavior does not hide in JSON bags: assistant persona and generation
// profiles are first-class fields validated at load time.
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	FastModel           string `envconfig:"FAST_MODEL" default:"gpt-4o-mini"`
	DeepModel           string `envconfig:"DEEP_MODEL" default:"gpt-4o"`

	AssistantName    string `envconfig:"ASSISTANT_NAME" default:"Aida"`
	AssistantPersona string `envconfig:"ASSISTANT_PERSONA" default:"You are a helpful business assistant for this organization. Answer using the provided knowledge excerpts when relevant and cite nothing you cannot support."`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"prometric-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	ChunkTargetSize int `envconfig:"CHUNK_TARGET_SIZE" default:"1000"`
	ChunkOverlap    int `envconfig:"CHUNK_OVERLAP" default:"150"`

	SearchTopK          int     `envconfig:"SEARCH_TOP_K" default:"5"`
	SearchMinSimilarity float32 `envconfig:"SEARCH_MIN_SIMILARITY" default:"0.7"`
	ContextMaxMessages  int     `envconfig:"CONTEXT_MAX_MESSAGES" default:"10"`

	EmbedPollInterval    time.Duration `envconfig:"EMBED_POLL_INTERVAL" default:"10s"`
	LearningInterval     time.Duration `envconfig:"LEARNING_INTERVAL" default:"1h"`
	InsightInterval      time.Duration `envconfig:"INSIGHT_INTERVAL" default:"6h"`
	InsightLookback      time.Duration `envconfig:"INSIGHT_LOOKBACK" default:"24h"`
	LearningBatchSize    int           `envconfig:"LEARNING_BATCH_SIZE" default:"200"`
	InsightMinSample     int           `envconfig:"INSIGHT_MIN_SAMPLE" default:"10"`
	InsightRatingFloor   float64       `envconfig:"INSIGHT_RATING_FLOOR" default:"3.5"`
	OpenAIRequestTimeout time.Duration `envconfig:"OPENAI_REQUEST_TIMEOUT" default:"30s"`
	OpenAIRatePerSecond  float64       `envconfig:"OPENAI_RATE_PER_SECOND" default:"5"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("PROMETRIC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.ChunkTargetSize <= 0 {
		return fmt.Errorf("chunk target size must be positive, got %d", c.ChunkTargetSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkTargetSize {
		return fmt.Errorf("chunk overlap must be in [0, target size), got %d", c.ChunkOverlap)
	}
	if c.SearchMinSimilarity < 0 || c.SearchMinSimilarity > 1 {
		return fmt.Errorf("min similarity must be in [0, 1], got %f", c.SearchMinSimilarity)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.EmbeddingDimensions)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
