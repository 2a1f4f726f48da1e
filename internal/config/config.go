package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultToken is the development token; startup warns when it is in use.
const DefaultToken = "changeme"

// Config is loaded once at startup and passed to every component that needs it.
type Config struct {
	Port          string
	AuthToken     string
	ServiceName   string
	LogLevel      string
	LogFormat     string
	CORSOrigins   []string
	MaxFormMemory int64

	StorageProvider   string
	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool
	PublicBaseURL     string
	LocalStorageDir   string

	MagickBinary      string
	MagickThreadLimit int
	MaxConcurrentJobs int
	ScratchDir        string

	SourceFetchTimeout  time.Duration
	OverlayFetchTimeout time.Duration
	MaxSourceBytes      int64
	FetchAllowPrivate   bool

	TraceExporter string
	OTLPEndpoint  string
	OTLPInsecure  bool
}

func Load() *Config {
	// Try the parent directory first, then the working directory
	godotenv.Load(filepath.Join("..", ".env"))
	godotenv.Load(".env")

	return &Config{
		Port:          getEnv("PORT", "8080"),
		AuthToken:     getEnv("PIXLOAD_IMAGE_TOKEN", DefaultToken),
		ServiceName:   getEnv("SERVICE_NAME", "Pixload Darkroom"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		CORSOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxFormMemory: getEnvInt64("MAX_FORM_MEMORY", 32<<20),

		StorageProvider:   getEnv("STORAGE_PROVIDER", "r2"),
		S3Endpoint:        getEnv("S3_ENDPOINT_URL", ""),
		S3Bucket:          getEnv("S3_BUCKET", "pixload"),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle:  getEnvBool("S3_FORCE_PATH_STYLE", false),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "https://cdn.pixload.events"),
		LocalStorageDir:   getEnv("LOCAL_STORAGE_DIR", "./.darkroom-storage"),

		MagickBinary:      getEnv("MAGICK_BINARY", "magick"),
		MagickThreadLimit: getEnvInt("MAGICK_THREAD_LIMIT", 1),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", runtime.NumCPU()),
		ScratchDir:        getEnv("SCRATCH_DIR", os.TempDir()),

		SourceFetchTimeout:  getEnvDuration("SOURCE_FETCH_TIMEOUT", 15*time.Second),
		OverlayFetchTimeout: getEnvDuration("OVERLAY_FETCH_TIMEOUT", 10*time.Second),
		MaxSourceBytes:      getEnvInt64("MAX_SOURCE_BYTES", 50<<20),
		FetchAllowPrivate:   getEnvBool("FETCH_ALLOW_PRIVATE", false),

		TraceExporter: getEnv("TRACE_EXPORTER", "none"),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),
		OTLPInsecure:  getEnvBool("OTLP_INSECURE", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
