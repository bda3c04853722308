package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"s3-to-onedrive/internal/graph"
)

// Environment variable names.
const (
	EnvConfigPath         = "S3_TO_ONEDRIVE_CONFIG"
	EnvClientID           = "ONEDRIVE_CLIENT_ID"
	EnvRefreshToken       = "ONEDRIVE_REFRESH_TOKEN"
	EnvRefreshTokenSecret = "ONEDRIVE_REFRESH_TOKEN_SECRET_ID"
	EnvSharedFolder       = "ONEDRIVE_SHARED_FOLDER"
	EnvScratchDir         = "SCRATCH_DIR"
	EnvTokenCache         = "TOKEN_CACHE"
	EnvLogLevel           = "LOG_LEVEL"
	EnvGraphBaseURL       = "GRAPH_BASE_URL"
	EnvTokenURL           = "TOKEN_URL"
)

// Config is built once at startup and handed to constructors by value.
type Config struct {
	ClientID             string `toml:"client_id"`
	RefreshToken         string `toml:"refresh_token"`
	RefreshTokenSecretID string `toml:"refresh_token_secret_id"`
	SharedFolderName     string `toml:"shared_folder"`
	ScratchDir           string `toml:"scratch_dir"`
	TokenCache           bool   `toml:"token_cache"`
	LogLevel             string `toml:"log_level"`
	GraphBaseURL         string `toml:"graph_base_url"`
	TokenURL             string `toml:"token_url"`
}

func DefaultConfig() Config {
	return Config{
		ScratchDir:   os.TempDir(),
		LogLevel:     "info",
		GraphBaseURL: graph.DefaultBaseURL,
		TokenURL:     graph.DefaultTokenURL,
	}
}

// LoadConfig layers defaults, the optional TOML file at path, and the
// environment, in that order. It does not validate; call Validate once any
// secret references have been resolved.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, &config)
		if err != nil {
			return Config{}, fmt.Errorf("%w: parsing config file %s: %w", ErrConfiguration, path, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)

			return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrConfiguration, path, strings.Join(keys, ", "))
		}
	}

	if err := applyEnv(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// LoadConfigFromEnv loads the config file named by S3_TO_ONEDRIVE_CONFIG, if
// any, and the environment.
func LoadConfigFromEnv() (Config, error) {
	return LoadConfig(os.Getenv(EnvConfigPath))
}

func applyEnv(config *Config) error {
	setString := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setString(&config.ClientID, EnvClientID)
	setString(&config.RefreshToken, EnvRefreshToken)
	setString(&config.RefreshTokenSecretID, EnvRefreshTokenSecret)
	setString(&config.SharedFolderName, EnvSharedFolder)
	setString(&config.ScratchDir, EnvScratchDir)
	setString(&config.LogLevel, EnvLogLevel)
	setString(&config.GraphBaseURL, EnvGraphBaseURL)
	setString(&config.TokenURL, EnvTokenURL)

	if v := os.Getenv(EnvTokenCache); v != "" {
		cache, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: environment variable %s must be a boolean, got %q", ErrConfiguration, EnvTokenCache, v)
		}
		config.TokenCache = cache
	}

	return nil
}

// Validate fails on the first required setting that is missing.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: environment variable %s is required", ErrConfiguration, EnvClientID)
	}

	if c.RefreshToken == "" {
		return fmt.Errorf("%w: environment variable %s or %s is required",
			ErrConfiguration, EnvRefreshToken, EnvRefreshTokenSecret)
	}

	if c.SharedFolderName == "" {
		return fmt.Errorf("%w: environment variable %s is required", ErrConfiguration, EnvSharedFolder)
	}

	if c.ScratchDir == "" {
		return fmt.Errorf("%w: scratch directory is empty", ErrConfiguration)
	}

	return nil
}

func ParseS3URL(url string) (bucket string, key string, err error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL, missing 's3://' prefix")
	}
	trimmedS3URL := strings.TrimPrefix(url, "s3://")
	splitPos := strings.Index(trimmedS3URL, "/")
	if splitPos == -1 {
		return "", "", fmt.Errorf("invalid S3 URL, no '/' found after bucket name")
	}
	bucket = trimmedS3URL[:splitPos]
	key = trimmedS3URL[splitPos+1:]
	if key == "" {
		return "", "", fmt.Errorf("invalid S3 URL, object key is empty")
	}
	return bucket, key, nil
}
