package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/dwcli/dw/internal/engine"
	"github.com/dwcli/dw/internal/utils"
)

const (
	DefaultTimeoutSecs        = 30
	DefaultConnectTimeoutSecs = 5
	DefaultRetries            = 3
	DefaultParallelRequests   = 5
	DefaultMaxDisplayedName   = 20
)

// EnvConfigPath overrides the config search when set.
const EnvConfigPath = "DW_CONFIG_PATH"

type Config struct {
	General  General  `mapstructure:"general"`
	Download Download `mapstructure:"download"`
	Progress Progress `mapstructure:"progress"`
	Output   Output   `mapstructure:"output"`
}

type General struct {
	LogLevel   string `mapstructure:"log_level"`
	ConfigPath string `mapstructure:"config_path"`
}

type Download struct {
	TimeoutSecs        int    `mapstructure:"timeout_secs"`
	ConnectTimeoutSecs int    `mapstructure:"connect_timeout_secs"`
	Retries            int    `mapstructure:"retries"`
	ParallelRequests   int    `mapstructure:"parallel_requests"`
	DownloadDir        string `mapstructure:"download_dir"`
	SpeedLimit         int64  `mapstructure:"speed_limit"`
	UserAgent          string `mapstructure:"user_agent"`
}

// Progress configures the renderer only; the engine never reads it.
type Progress struct {
	Enable               bool   `mapstructure:"enable"`
	MaxDisplayedFilename int    `mapstructure:"max_displayed_filename"`
	ProgressBarChars     string `mapstructure:"progress_bar_chars"`
	SpinnerChars         string `mapstructure:"spinner_chars"`
}

// Output holds message strings keyed to lifecycle events. Empty means no
// message is printed for that event.
type Output struct {
	MessageOnStart         string `mapstructure:"message_on_start"`
	MessageOnErrors        string `mapstructure:"message_on_errors"`
	MessageOnSuccess       string `mapstructure:"message_on_success"`
	MessageOnFinish        string `mapstructure:"message_on_finish"`
	MessageOnRequest       string `mapstructure:"message_on_request"`
	MessageOnResponse      string `mapstructure:"message_on_response"`
	MessageOnFileExists    string `mapstructure:"message_on_file_exists"`
	MessageOnFileCreate    string `mapstructure:"message_on_file_create"`
	MessageOnFileSizeKnown string `mapstructure:"message_on_file_size_known"`
	MessageOnStartDownload string `mapstructure:"message_on_start_download"`
}

// MessageFor maps an engine event name to its configured message hook.
func (o Output) MessageFor(event string) string {
	switch event {
	case engine.EventBatchStart:
		return o.MessageOnStart
	case engine.EventBatchFinish:
		return o.MessageOnFinish
	case engine.EventRequestSent:
		return o.MessageOnRequest
	case engine.EventResponseReceived:
		return o.MessageOnResponse
	case engine.EventFileExistsSkip:
		return o.MessageOnFileExists
	case engine.EventFileCreate:
		return o.MessageOnFileCreate
	case engine.EventFileSizeKnown:
		return o.MessageOnFileSizeKnown
	case engine.EventDownloadStart:
		return o.MessageOnStartDownload
	}
	return ""
}

func Default() Config {
	return Config{
		General: General{LogLevel: "all"},
		Download: Download{
			TimeoutSecs:        DefaultTimeoutSecs,
			ConnectTimeoutSecs: DefaultConnectTimeoutSecs,
			Retries:            DefaultRetries,
			ParallelRequests:   DefaultParallelRequests,
		},
		Progress: Progress{
			Enable:               true,
			MaxDisplayedFilename: DefaultMaxDisplayedName,
			ProgressBarChars:     "━━ ",
			SpinnerChars:         "⠁⠂⠄⡀⢀⠠⠐⠈",
		},
		Output: Output{
			MessageOnSuccess: "All files downloaded successfully!",
			MessageOnFinish:  "Finish!",
		},
	}
}

// Load reads the TOML config from an explicit path, or from the first
// standard location found. A missing config file is not an error; defaults
// apply.
func Load(explicitPath string) (Config, error) {
	log := utils.GetLogger("config")
	cfg := Default()

	path := explicitPath
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		log.Debug().Msg("No config file found, using defaults")
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("error reading config %s: %w", path, err)
	}

	// A config may point at another config to use instead.
	if redirect := v.GetString("general.config_path"); redirect != "" && redirect != path {
		v = viper.New()
		v.SetConfigFile(redirect)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("error reading config %s: %w", redirect, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Config loaded")
	return cfg, nil
}

// findConfig returns the first existing path from the standard locations:
// DW_CONFIG_PATH, the user config dir (dw.toml, then dw/config.toml), the
// home-relative fallbacks and /etc.
func findConfig() string {
	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func configPaths() []string {
	var paths []string
	seen := make(map[string]bool)
	add := func(path string) {
		if path != "" && !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}
	add(os.Getenv(EnvConfigPath))
	if configDir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(configDir, "dw.toml"))
		add(filepath.Join(configDir, "dw", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".config", "dw.toml"))
		add(filepath.Join(home, ".config", "dw", "config.toml"))
		add(filepath.Join(home, ".dw.toml"))
	}
	add("/etc/dw.toml")
	return paths
}
