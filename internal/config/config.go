package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultLabels are the emotion classes in the order of the model output layer.
var DefaultLabels = []string{"senang", "sedih", "marah", "takut", "netral"}

type Config struct {
	Port           int    `validate:"min=1,max=65535"`
	Env            string `validate:"required"`
	ModelPath      string `validate:"required"`
	MetadataPath   string
	ORTLibraryPath string
	InputName      string   `validate:"required"`
	OutputName     string   `validate:"required"`
	InputSize      int      `validate:"oneof=48 224"`
	Layout         string   `validate:"oneof=nhwc nchw"`
	Labels         []string `validate:"min=1,dive,required"`
	FallbackSeed   int64
	MaxUploadBytes int64  `validate:"gt=0"`
	LogLevel       string `validate:"oneof=trace debug info warn error"`
	LogDirectory   string
}

// Channels is 1 for the 48px grayscale pipeline and 3 otherwise.
func (c *Config) Channels() int {
	if c.InputSize == 48 {
		return 1
	}
	return 3
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:           getEnvAsInt("PORT", 8080),
		Env:            getEnv("APP_ENV", "development"),
		ModelPath:      getEnv("MODEL_PATH", filepath.Join(".", "models", "model.onnx")),
		MetadataPath:   getEnv("METADATA_PATH", filepath.Join(".", "models", "model_metadata.json")),
		ORTLibraryPath: getEnv("ORT_LIBRARY_PATH", ""),
		InputName:      getEnv("MODEL_INPUT_NAME", "input"),
		OutputName:     getEnv("MODEL_OUTPUT_NAME", "output"),
		InputSize:      getEnvAsInt("MODEL_INPUT_SIZE", 224),
		Layout:         strings.ToLower(getEnv("MODEL_LAYOUT", "nhwc")),
		Labels:         getEnvAsList("EMOTION_LABELS", DefaultLabels),
		FallbackSeed:   getEnvAsInt64("FALLBACK_SEED", 42),
		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "storage", "logs")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
