package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/params/internal/paths"
	"github.com/mesh-intelligence/params/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "PARAMS"
)

// Config keys.
const (
	cfgKeyBackend             = "backend"
	cfgKeyDataDir             = "data_dir"
	cfgKeyEncryptionKey       = "encryption_key"
	cfgKeyEncryptionAlgorithm = "encryption_algorithm"
	cfgKeyKeySource           = "key_source"
	cfgKeyKeyringService      = "keyring_service"
	cfgKeyKeyringAccount      = "keyring_account"
	cfgKeyBackupFile          = "encryption_key_backup_file"
	cfgKeyCustomValidators    = "custom_validators"
	cfgKeyLogLevel            = "log_level"
	cfgKeyLogFormat           = "log_format"
	cfgKeyMetricsTextfile     = "metrics_textfile"
)

// Key sources.
const (
	keySourceConfig  = "config"
	keySourceKeyring = "keyring"
)

// settings is the resolved configuration of one invocation.
type settings struct {
	Backend             string            `yaml:"backend"`
	DataDir             string            `yaml:"data_dir,omitempty"`
	EncryptionKey       string            `yaml:"encryption_key,omitempty"`
	EncryptionAlgorithm string            `yaml:"encryption_algorithm,omitempty"`
	KeySource           string            `yaml:"key_source"`
	KeyringService      string            `yaml:"keyring_service"`
	KeyringAccount      string            `yaml:"keyring_account"`
	BackupFile          string            `yaml:"encryption_key_backup_file,omitempty"`
	CustomValidators    map[string]string `yaml:"custom_validators,omitempty"`
	LogLevel            string            `yaml:"log_level"`
	LogFormat           string            `yaml:"log_format"`
	MetricsTextfile     string            `yaml:"metrics_textfile,omitempty"`

	configDir string
}

func defaultSettings() settings {
	return settings{
		Backend:        types.BackendSQLite,
		KeySource:      keySourceConfig,
		KeyringService: "params",
		KeyringAccount: "encryption_key",
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

const configHeader = `# params configuration
#
# Every key can be overridden by an environment variable with the PARAMS_
# prefix, for example PARAMS_ENCRYPTION_KEY.
#
# key_source is "config" (encryption_key below) or "keyring" (OS keyring
# entry keyring_service/keyring_account).

`

// loadConfig reads config.yaml from configDir with Viper, creating the
// directory and a default file on first run. Environment variables with the
// PARAMS_ prefix override file values.
func loadConfig(configDir string) (*settings, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	def := defaultSettings()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyEncryptionKey, "")
	v.SetDefault(cfgKeyEncryptionAlgorithm, "")
	v.SetDefault(cfgKeyKeySource, def.KeySource)
	v.SetDefault(cfgKeyKeyringService, def.KeyringService)
	v.SetDefault(cfgKeyKeyringAccount, def.KeyringAccount)
	v.SetDefault(cfgKeyBackupFile, "")
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyLogFormat, def.LogFormat)
	v.SetDefault(cfgKeyMetricsTextfile, "")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	s := &settings{
		Backend:             v.GetString(cfgKeyBackend),
		DataDir:             v.GetString(cfgKeyDataDir),
		EncryptionKey:       v.GetString(cfgKeyEncryptionKey),
		EncryptionAlgorithm: v.GetString(cfgKeyEncryptionAlgorithm),
		KeySource:           strings.ToLower(v.GetString(cfgKeyKeySource)),
		KeyringService:      v.GetString(cfgKeyKeyringService),
		KeyringAccount:      v.GetString(cfgKeyKeyringAccount),
		BackupFile:          v.GetString(cfgKeyBackupFile),
		CustomValidators:    v.GetStringMapString(cfgKeyCustomValidators),
		LogLevel:            v.GetString(cfgKeyLogLevel),
		LogFormat:           v.GetString(cfgKeyLogFormat),
		MetricsTextfile:     v.GetString(cfgKeyMetricsTextfile),
		configDir:           configDir,
	}
	switch s.KeySource {
	case keySourceConfig, keySourceKeyring:
	default:
		return nil, userError("config: key_source must be %q or %q, got %q", keySourceConfig, keySourceKeyring, s.KeySource)
	}
	return s, nil
}

// ensureDefaultConfigFile writes config.yaml with default values when it
// does not exist. The file may hold a key, so it is readable by the owner
// only.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	def := defaultSettings()
	data, err := yaml.Marshal(&def)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0o600)
}

// setConfigValue rewrites one key of config.yaml, keeping the others.
func setConfigValue(configDir, key, value string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read config: %w", err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	doc[key] = value
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), out...), 0o600)
}
