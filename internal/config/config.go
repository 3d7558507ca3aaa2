package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed formats.yaml
var formatsYAML []byte

type Config struct {
	Ingest    IngestConfig
	Embedding EmbeddingConfig
	Store     StoreConfig
	Search    SearchConfig
	Web       WebConfig
	Formats   FormatsConfig
}

type IngestConfig struct {
	WatchDir            string        // directory watched for incoming photos
	PhotosDir           string        // directory ingested photos are served from
	Mode                string        // "move" relocates files into PhotosDir, "in-place" leaves them
	SettleDelay         time.Duration // grace period before reading a newly seen file
	SettleProbeInterval time.Duration // spacing between file-size stability probes
	SettleProbeRounds   int           // max stability probes before reading anyway
	Concurrency         int           // max ingestion tasks running at once
}

type EmbeddingConfig struct {
	URL          string        // face embedding service base URL
	Dim          int           // expected vector dimensionality
	Timeout      time.Duration // per-request timeout for the extraction call
	SendRaw      bool          // skip local normalization and send original file bytes
	MaxImageEdge int           // long-edge pixel cap applied during normalization
}

type StoreConfig struct {
	Backend      string // "file" or "postgres"
	FilePath     string // gob snapshot path for the file backend
	DatabaseURL  string // PostgreSQL connection URL for the postgres backend
	MaxOpenConns int
	MaxIdleConns int
}

type SearchConfig struct {
	Threshold float64 // max cosine distance for a match, lower = stricter
}

type WebConfig struct {
	MaxUploadSize int64 // bytes
}

// FormatsConfig is the file-type policy embedded from formats.yaml,
// overridable per-field via environment variables.
type FormatsConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
	RawExtensions     []string `yaml:"raw_extensions"`
	TempSuffixes      []string `yaml:"temp_suffixes"`
}

const (
	// IngestModeMove relocates admitted files into PhotosDir before embedding.
	IngestModeMove = "move"
	// IngestModeInPlace embeds files where they lie and serves the watch dir.
	IngestModeInPlace = "in-place"
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration ("1s", "500ms").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

// envString returns the env var value or the default if unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList parses a comma-separated env var into a trimmed string slice.
// Returns the default slice if the env var is unset or yields no entries.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func Load() *Config {
	var formats FormatsConfig
	if err := yaml.Unmarshal(formatsYAML, &formats); err != nil {
		// The file is embedded at compile time, so this is a programming bug.
		panic("failed to unmarshal embedded formats.yaml: " + err.Error())
	}

	formats.AllowedExtensions = envList("ALLOWED_EXTENSIONS", formats.AllowedExtensions)
	formats.RawExtensions = envList("RAW_EXTENSIONS", formats.RawExtensions)
	formats.TempSuffixes = envList("TEMP_SUFFIXES", formats.TempSuffixes)

	return &Config{
		Ingest: IngestConfig{
			WatchDir:            envString("WATCH_DIR", "raw_photos"),
			PhotosDir:           envString("PHOTOS_DIR", "photos"),
			Mode:                envString("INGEST_MODE", IngestModeMove),
			SettleDelay:         envDuration("SETTLE_DELAY", time.Second),
			SettleProbeInterval: envDuration("SETTLE_PROBE_INTERVAL", 200*time.Millisecond),
			SettleProbeRounds:   envInt("SETTLE_PROBE_ROUNDS", 10),
			Concurrency:         envInt("INGEST_CONCURRENCY", 4),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim:          envInt("EMBEDDING_DIM", 128),
			Timeout:      envDuration("EMBEDDING_TIMEOUT", 60*time.Second),
			SendRaw:      os.Getenv("EMBEDDING_SEND_RAW") == "1",
			MaxImageEdge: envInt("EMBEDDING_MAX_EDGE", 1600),
		},
		Store: StoreConfig{
			Backend:      envString("STORE_BACKEND", "file"),
			FilePath:     envString("STORE_FILE", "face_db.gob"),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Search: SearchConfig{
			Threshold: envFloat("SIMILARITY_THRESHOLD", 0.5),
		},
		Web: WebConfig{
			MaxUploadSize: int64(envInt("MAX_UPLOAD_SIZE_MB", 32)) << 20,
		},
		Formats: formats,
	}
}
