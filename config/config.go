// Package config reads the netdisk tool configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"

	"github.com/bitrise-io/go-netdisk/netdisk"
	"github.com/bitrise-io/go-netdisk/netdisk/network"
)

const (
	AccessTokenKey    = "NETDISK_ACCESS_TOKEN"
	RemoteDirKey      = "NETDISK_REMOTE_DIR"
	ChunkSizeKey      = "NETDISK_CHUNK_SIZE"
	CallTimeoutKey    = "NETDISK_CALL_TIMEOUT"
	APIURLKey         = "NETDISK_API_URL"
	UploadURLKey      = "NETDISK_UPLOAD_URL"
	TimestampsPathKey = "NETDISK_TIMESTAMPS_PATH"
	DebugKey          = "NETDISK_DEBUG"
)

// Secret is a string that is masked when printed.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}

// Config ...
type Config struct {
	AccessToken    Secret
	RemoteDir      string
	ChunkSize      int64
	CallTimeout    time.Duration
	APIBaseURL     string
	UploadBaseURL  string
	TimestampsPath string
	Debug          bool
}

// Parse reads the configuration from envRepo. The access token is not required here,
// commands that talk to the provider check it themselves.
func Parse(envRepo env.Repository) (Config, error) {
	config := Config{
		AccessToken:   Secret(strings.TrimSpace(envRepo.Get(AccessTokenKey))),
		RemoteDir:     netdisk.DefaultRemoteDir,
		ChunkSize:     netdisk.DefaultConfig().ChunkSize,
		CallTimeout:   network.DefaultCallTimeout,
		APIBaseURL:    network.DefaultAPIBaseURL,
		UploadBaseURL: network.DefaultUploadBaseURL,
	}

	if value := envRepo.Get(RemoteDirKey); value != "" {
		if err := CheckRemoteDir(value); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", RemoteDirKey, err)
		}
		config.RemoteDir = value
	}

	if value := envRepo.Get(ChunkSizeKey); value != "" {
		size, err := units.RAMInBytes(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", ChunkSizeKey, err)
		}
		if size <= 0 {
			return Config{}, fmt.Errorf("%s should be positive, got: %s", ChunkSizeKey, value)
		}
		config.ChunkSize = size
	}

	if value := envRepo.Get(CallTimeoutKey); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", CallTimeoutKey, err)
		}
		if timeout < 0 {
			return Config{}, fmt.Errorf("%s should not be negative, got: %s", CallTimeoutKey, value)
		}
		config.CallTimeout = timeout
	}

	if value := envRepo.Get(APIURLKey); value != "" {
		config.APIBaseURL = value
	}
	if value := envRepo.Get(UploadURLKey); value != "" {
		config.UploadBaseURL = value
	}

	config.TimestampsPath = envRepo.Get(TimestampsPathKey)
	if config.TimestampsPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("%s is not set and the user config dir is unknown: %w", TimestampsPathKey, err)
		}
		config.TimestampsPath = filepath.Join(dir, "netdisk", "upload_timestamps.json")
	}

	if value := envRepo.Get(DebugKey); value != "" {
		debug, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", DebugKey, err)
		}
		config.Debug = debug
	}

	return config, nil
}

// CheckRemoteDir rejects netdisk directories that are not absolute.
func CheckRemoteDir(dir string) error {
	if !strings.HasPrefix(dir, "/") {
		return fmt.Errorf("remote dir should be an absolute netdisk path, got: %s", dir)
	}
	return nil
}

// UploadConfig ...
func (c Config) UploadConfig() netdisk.Config {
	return netdisk.Config{
		ChunkSize:        c.ChunkSize,
		DefaultRemoteDir: c.RemoteDir,
	}
}

// ClientParams ...
func (c Config) ClientParams() network.ClientParams {
	return network.ClientParams{
		APIBaseURL:    c.APIBaseURL,
		UploadBaseURL: c.UploadBaseURL,
		CallTimeout:   c.CallTimeout,
	}
}

// Print logs the configuration with the access token masked.
func (c Config) Print(printf func(format string, v ...interface{})) {
	printf("Configuration:")
	printf("- AccessToken: %s", c.AccessToken)
	printf("- RemoteDir: %s", c.RemoteDir)
	printf("- ChunkSize: %s", units.BytesSize(float64(c.ChunkSize)))
	printf("- CallTimeout: %s", c.CallTimeout)
	printf("- APIBaseURL: %s", c.APIBaseURL)
	printf("- UploadBaseURL: %s", c.UploadBaseURL)
	printf("- TimestampsPath: %s", c.TimestampsPath)
	printf("- Debug: %t", c.Debug)
}
