package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadEnv reads a .env file and returns a map of key-value pairs.
// It ignores comments (starting with #) and empty lines.
func LoadEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove inline comments
		if idx := strings.Index(value, " #"); idx != -1 {
			value = strings.TrimSpace(value[:idx])
		}

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		env[key] = value
	}

	return env, scanner.Err()
}

// ApplyEnvOverrides updates the configuration based on environment variables.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	// Server
	if val, ok := env["SERVER_PORT"]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	// Debate settings
	if val, ok := env["DEBATE_MAX_ROUNDS"]; ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Debate.MaxRounds = n
		}
	}
	if val, ok := env["DEBATE_ROUND_TIMEOUT"]; ok {
		if seconds, err := strconv.Atoi(val); err == nil {
			cfg.Debate.RoundTimeout = time.Duration(seconds) * time.Second
		} else if d, err := time.ParseDuration(val); err == nil {
			cfg.Debate.RoundTimeout = d
		}
	}
	if val, ok := env["DEBATE_SIMILARITY_THRESHOLD"]; ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Debate.SimilarityLimit = f
		}
	}
	if val, ok := env["DEBATE_QUALITY_THRESHOLD"]; ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Debate.QualityFloor = f
		}
	}

	// Storage
	if val, ok := env["STORAGE_PATH"]; ok {
		cfg.Storage.Path = val
	}

	// Provider enablement and timeouts
	for name, pc := range cfg.Providers {
		envKey := "PROVIDER_" + strings.ToUpper(name) + "_ENABLED"
		if val, ok := env[envKey]; ok {
			if boolVal, err := strconv.ParseBool(val); err == nil {
				pc.Enabled = boolVal
				cfg.Providers[name] = pc
			}
		}

		if val, ok := env["PROVIDER_TIMEOUT"]; ok {
			if seconds, err := strconv.Atoi(val); err == nil {
				pc.Timeout = time.Duration(seconds) * time.Second
				cfg.Providers[name] = pc
			} else if duration, err := time.ParseDuration(val); err == nil {
				pc.Timeout = duration
				cfg.Providers[name] = pc
			}
		}
	}
}
