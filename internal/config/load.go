package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GetEnv returns $ENV, or "local".
func GetEnv() string {
	if env, ok := os.LookupEnv("ENV"); ok && env != "" {
		return env
	}
	return "local"
}

// Load reads config/<env>.yaml.
func Load(env string) (Config, error) {
	return LoadFile(configPath(env))
}

// LoadFile reads an explicit file. A .env in the working directory is
// loaded into the process environment first, when there is one.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse expands environment references in data, decodes it over Default and validates.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configPath prefers ./config, then the config dir next to this module's sources.
func configPath(env string) string {
	name := env + ".yaml"
	local := filepath.Join("config", name)
	if _, err := os.Stat(local); err == nil {
		return local
	}

	if _, src, _, ok := runtime.Caller(0); ok {
		root := filepath.Join(filepath.Dir(src), "..", "..")
		candidate := filepath.Join(root, "config", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return local
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv substitutes ${VAR} and ${VAR:-fallback}; the fallback applies when VAR is unset or empty.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name, fallback, hasFallback := strings.Cut(string(envRef.FindSubmatch(ref)[1]), ":-")
		if v := os.Getenv(name); v != "" || !hasFallback {
			return []byte(v)
		}
		return []byte(fallback)
	})
}
