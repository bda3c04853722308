package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3-to-onedrive/internal/graph"
)

// clearConfigEnv makes sure the developer's shell does not leak into tests.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		EnvConfigPath, EnvClientID, EnvRefreshToken, EnvRefreshTokenSecret, EnvSharedFolder,
		EnvScratchDir, EnvTokenCache, EnvLogLevel, EnvGraphBaseURL, EnvTokenURL,
	} {
		t.Setenv(name, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestParseS3URL(t *testing.T) {
	t.Run("Valid S3 URL", func(t *testing.T) {
		bucket, key, err := ParseS3URL("s3://mybucket/mykey")
		require.NoError(t, err)
		assert.Equal(t, "mybucket", bucket)
		assert.Equal(t, "mykey", key)
	})

	t.Run("Nested key", func(t *testing.T) {
		bucket, key, err := ParseS3URL("s3://mybucket/a/b/c.txt")
		require.NoError(t, err)
		assert.Equal(t, "mybucket", bucket)
		assert.Equal(t, "a/b/c.txt", key)
	})

	t.Run("Missing s3 prefix", func(t *testing.T) {
		_, _, err := ParseS3URL("mybucket/mykey")
		require.Error(t, err)
		assert.Equal(t, "invalid S3 URL, missing 's3://' prefix", err.Error())
	})

	t.Run("No slash after bucket", func(t *testing.T) {
		_, _, err := ParseS3URL("s3://mybucket")
		require.Error(t, err)
		assert.Equal(t, "invalid S3 URL, no '/' found after bucket name", err.Error())
	})

	t.Run("Empty key", func(t *testing.T) {
		_, _, err := ParseS3URL("s3://mybucket/")
		require.Error(t, err)
		assert.Equal(t, "invalid S3 URL, object key is empty", err.Error())
	})
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("Valid environment variables", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv(EnvClientID, "client-abc")
		t.Setenv(EnvRefreshToken, "refresh-xyz")
		t.Setenv(EnvSharedFolder, "Reports")
		t.Setenv(EnvTokenCache, "true")

		config, err := LoadConfigFromEnv()
		require.NoError(t, err)
		require.NoError(t, config.Validate())
		assert.Equal(t, "client-abc", config.ClientID)
		assert.Equal(t, "refresh-xyz", config.RefreshToken)
		assert.Equal(t, "Reports", config.SharedFolderName)
		assert.True(t, config.TokenCache)
		assert.Equal(t, os.TempDir(), config.ScratchDir)
		assert.Equal(t, graph.DefaultBaseURL, config.GraphBaseURL)
		assert.Equal(t, graph.DefaultTokenURL, config.TokenURL)
	})

	t.Run("Missing ONEDRIVE_CLIENT_ID", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv(EnvRefreshToken, "refresh-xyz")
		t.Setenv(EnvSharedFolder, "Reports")

		config, err := LoadConfigFromEnv()
		require.NoError(t, err)

		err = config.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Equal(t, "configuration error: environment variable ONEDRIVE_CLIENT_ID is required", err.Error())
	})

	t.Run("Missing ONEDRIVE_REFRESH_TOKEN", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv(EnvClientID, "client-abc")
		t.Setenv(EnvSharedFolder, "Reports")

		config, err := LoadConfigFromEnv()
		require.NoError(t, err)

		err = config.Validate()
		require.Error(t, err)
		assert.Equal(t, "configuration error: environment variable ONEDRIVE_REFRESH_TOKEN or ONEDRIVE_REFRESH_TOKEN_SECRET_ID is required", err.Error())
	})

	t.Run("Missing ONEDRIVE_SHARED_FOLDER", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv(EnvClientID, "client-abc")
		t.Setenv(EnvRefreshToken, "refresh-xyz")

		config, err := LoadConfigFromEnv()
		require.NoError(t, err)

		err = config.Validate()
		require.Error(t, err)
		assert.Equal(t, "configuration error: environment variable ONEDRIVE_SHARED_FOLDER is required", err.Error())
	})

	t.Run("Invalid TOKEN_CACHE", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv(EnvTokenCache, "sometimes")

		_, err := LoadConfigFromEnv()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "TOKEN_CACHE must be a boolean")
	})

	t.Run("Config file named by environment", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv(EnvConfigPath, writeConfigFile(t, `
client_id = "file-client"
refresh_token = "file-refresh"
shared_folder = "Reports"
`))

		config, err := LoadConfigFromEnv()
		require.NoError(t, err)
		require.NoError(t, config.Validate())
		assert.Equal(t, "file-client", config.ClientID)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("File values with environment override", func(t *testing.T) {
		clearConfigEnv(t)
		path := writeConfigFile(t, `
client_id = "file-client"
refresh_token_secret_id = "onedrive/refresh"
shared_folder = "From File"
scratch_dir = "/var/tmp/copies"
token_cache = true
log_level = "debug"
`)
		t.Setenv(EnvSharedFolder, "From Env")

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "file-client", config.ClientID)
		assert.Equal(t, "onedrive/refresh", config.RefreshTokenSecretID)
		assert.Equal(t, "From Env", config.SharedFolderName)
		assert.Equal(t, "/var/tmp/copies", config.ScratchDir)
		assert.True(t, config.TokenCache)
		assert.Equal(t, "debug", config.LogLevel)
	})

	t.Run("Unknown keys are rejected", func(t *testing.T) {
		clearConfigEnv(t)
		path := writeConfigFile(t, `
client_id = "c"
shared_folde = "typo"
`)

		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "shared_folde")
	})

	t.Run("Malformed file", func(t *testing.T) {
		clearConfigEnv(t)

		_, err := LoadConfig(writeConfigFile(t, `client_id = `))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("Missing file", func(t *testing.T) {
		clearConfigEnv(t)

		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
