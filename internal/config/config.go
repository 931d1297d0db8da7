package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
)

const (
	KeyDataDir = "data-dir"
	KeyDebug   = "debug"

	KeyFeedBaseURL    = "feed.base-url"
	KeyFeedOwner      = "feed.owner"
	KeyFeedRepo       = "feed.repo"
	KeyFeedRepository = "feed.repository" // Shorthand "owner/repo"; explicit owner/repo keys win.
	KeyFeedAssetName  = "feed.asset-name"
	KeyFeedUserAgent  = "feed.user-agent"
	KeyFeedTimeout    = "feed.timeout"

	KeyDownloadTimeout  = "download.timeout"
	KeyDownloadMaxBytes = "download.max-bytes"

	KeyServerAddr     = "server.addr"
	KeyHistoryEnabled = "history.enabled"
)

const (
	DefaultFeedBaseURL      = "https://api.github.com"
	DefaultFeedOwner        = "agent0ai"
	DefaultFeedRepo         = "a0-launcher"
	DefaultAssetName        = "content.json"
	DefaultUserAgent        = "A0-Launcher"
	DefaultFeedTimeout      = 15 * time.Second
	DefaultDownloadTimeout  = 2 * time.Minute
	DefaultDownloadMaxBytes = 64 << 20
	DefaultServerAddr       = "127.0.0.1:0"

	appDirName = "a0-launcher"
	envPrefix  = "A0"
)

type initSettings struct {
	userConfigPath string
	configFile     string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

// WithConfigFile merges an explicit config file on top of the user config.
func WithConfigFile(path string) Option {
	return func(cfg *initSettings) {
		cfg.configFile = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
)

// Initialize loads configuration using the precedence:
// defaults < user config < explicit config file < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt64 fetches an integer configuration value, initializing on demand.
func GetInt64(key string) int64 {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetInt64(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// Settings is a typed snapshot of the launcher configuration.
type Settings struct {
	DataDir string
	Debug   bool

	FeedBaseURL string
	Owner       string
	Repo        string
	AssetName   string
	UserAgent   string
	FeedTimeout time.Duration

	DownloadTimeout  time.Duration
	DownloadMaxBytes int64

	ServerAddr     string
	HistoryEnabled bool
}

// ContentDir is the live content directory.
func (s Settings) ContentDir() string { return filepath.Join(s.DataDir, "app_content") }

// MetaPath is the content metadata record.
func (s Settings) MetaPath() string { return filepath.Join(s.DataDir, "content_meta.json") }

// HistoryPath is the sqlite sync history database.
func (s Settings) HistoryPath() string { return filepath.Join(s.DataDir, "history.db") }

// Current validates and returns the active settings.
func Current() (Settings, error) {
	if _, err := getViper(); err != nil {
		return Settings{}, err
	}
	s := Settings{
		DataDir:          strings.TrimSpace(GetString(KeyDataDir)),
		Debug:            GetBool(KeyDebug),
		FeedBaseURL:      strings.TrimRight(strings.TrimSpace(GetString(KeyFeedBaseURL)), "/"),
		Owner:            strings.TrimSpace(GetString(KeyFeedOwner)),
		Repo:             strings.TrimSpace(GetString(KeyFeedRepo)),
		AssetName:        strings.TrimSpace(GetString(KeyFeedAssetName)),
		UserAgent:        strings.TrimSpace(GetString(KeyFeedUserAgent)),
		FeedTimeout:      GetDuration(KeyFeedTimeout),
		DownloadTimeout:  GetDuration(KeyDownloadTimeout),
		DownloadMaxBytes: GetInt64(KeyDownloadMaxBytes),
		ServerAddr:       strings.TrimSpace(GetString(KeyServerAddr)),
		HistoryEnabled:   GetBool(KeyHistoryEnabled),
	}
	if s.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return Settings{}, err
		}
		s.DataDir = dir
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch {
	case s.FeedBaseURL == "":
		return invalid("%s must not be empty", KeyFeedBaseURL)
	case s.Owner == "" || s.Repo == "":
		return invalid("release repository must be set (%s and %s)", KeyFeedOwner, KeyFeedRepo)
	case s.AssetName == "":
		return invalid("%s must not be empty", KeyFeedAssetName)
	case s.FeedTimeout <= 0:
		return invalid("%s must be positive", KeyFeedTimeout)
	case s.DownloadTimeout <= 0:
		return invalid("%s must be positive", KeyDownloadTimeout)
	case s.DownloadMaxBytes <= 0:
		return invalid("%s must be positive", KeyDownloadMaxBytes)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return apperrors.New(apperrors.CodeConfigurationError, fmt.Sprintf(format, args...), nil)
}

func configure(settings *initSettings) error {
	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if path := strings.TrimSpace(settings.configFile); path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
		if err := mergeConfigFile(v, path); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}
	applyRepositoryShorthand(v)

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, "."+appDirName, "config.yaml"), nil
}

// defaultDataDir mirrors the per-user application data location.
func defaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user data directory: %w", err)
	}
	return filepath.Join(dir, appDirName), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyFeedBaseURL, DefaultFeedBaseURL)
	v.SetDefault(KeyFeedOwner, DefaultFeedOwner)
	v.SetDefault(KeyFeedRepo, DefaultFeedRepo)
	v.SetDefault(KeyFeedAssetName, DefaultAssetName)
	v.SetDefault(KeyFeedUserAgent, DefaultUserAgent)
	v.SetDefault(KeyFeedTimeout, DefaultFeedTimeout)
	v.SetDefault(KeyDownloadTimeout, DefaultDownloadTimeout)
	v.SetDefault(KeyDownloadMaxBytes, DefaultDownloadMaxBytes)
	v.SetDefault(KeyServerAddr, DefaultServerAddr)
	v.SetDefault(KeyHistoryEnabled, true)
}

// applyRepositoryShorthand splits feed.repository ("owner/repo") into the
// owner and repo keys unless those were configured explicitly.
func applyRepositoryShorthand(v *viper.Viper) {
	if v == nil || !v.IsSet(KeyFeedRepository) {
		return
	}
	owner, repo, ok := strings.Cut(strings.TrimSpace(v.GetString(KeyFeedRepository)), "/")
	if !ok || owner == "" || repo == "" {
		return
	}
	if !isExplicit(v, KeyFeedOwner) {
		v.Set(KeyFeedOwner, owner)
	}
	if !isExplicit(v, KeyFeedRepo) {
		v.Set(KeyFeedRepo, repo)
	}
}

func isExplicit(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv(envKey(key))
	return ok
}

func envKey(key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(envPrefix) + "_" + strings.ToUpper(replacer.Replace(key))
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
//
//nolint:unused // Used in config_test.go
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
}

// ResetForTesting clears package state for tests in other packages.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithUserConfig(filepath.Join(tmp, "config.yaml")))
	return reset
}
