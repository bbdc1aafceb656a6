package bot

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "sorbot"

// Secret names resolvable via env var or OS keyring.
const (
	SecretOpenAIKey     = "OPENAI_API_KEY"
	SecretElevenLabsKey = "ELEVENLABS_API_KEY"
)

// LoadConfig reads the YAML config at path, layers defaults underneath and
// resolves API keys. Missing file is not an error: defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			resolveSecrets(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	resolveSecrets(&cfg)
	return cfg, nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"sorbot.yaml",
		"sorbot.yml",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// resolveSecrets fills empty API keys from the environment and OS keyring.
// Priority: config value → env var (.env already loaded) → keyring.
func resolveSecrets(cfg *Config) {
	loadEnvFiles()

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = ResolveSecret(SecretOpenAIKey)
	}
	if cfg.Voice.ElevenLabsAPIKey == "" {
		cfg.Voice.ElevenLabsAPIKey = ResolveSecret(SecretElevenLabsKey)
	}
}

// ResolveSecret looks a secret up by name: env var first, OS keyring second.
func ResolveSecret(name string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return GetKeyring(name)
}

// loadEnvFiles loads .env files from standard locations.
// godotenv.Load does NOT overwrite existing env vars.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// ---------- OS keyring ----------

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(name string) string {
	val, err := keyring.Get(keyringService, name)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(name string) error {
	return keyring.Delete(keyringService, name)
}
