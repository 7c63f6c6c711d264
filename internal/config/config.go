package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mega-get-server/internal/environment"
)

// MinPollInterval is the floor applied to the configured poll interval.
const MinPollInterval = 500 * time.Millisecond

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Download struct {
		Dir string
	}
	Transfers struct {
		ListLimit       int
		PathDisplaySize int
		// PollIntervalRaw accepts either a Go duration ("2s") or the bare
		// seconds the original deployment used ("0.0166").
		PollIntervalRaw string        `mapstructure:"pollinterval"`
		PollInterval    time.Duration `mapstructure:"-"`
	}
	MegaCmd struct {
		Dir      string
		Simulate bool
		TestMode bool
	}
	History struct {
		Path string
		Max  int
	}
	Auth struct {
		JWTSecret        string
		RegisterPassword string
		TokenTTLMinutes  int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
// The environment names the original deployment used (DOWNLOAD_DIR,
// TRANSFER_LIST_LIMIT, PATH_DISPLAY_SIZE, INPUT_TIMEOUT, MEGA_SIMULATE,
// UI_TEST_MODE, MEGACMD_PATH) are bound directly so existing setups keep
// working without an env prefix.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("MEGAGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("download.dir", "DOWNLOAD_DIR")
	_ = v.BindEnv("transfers.listlimit", "TRANSFER_LIST_LIMIT")
	_ = v.BindEnv("transfers.pathdisplaysize", "PATH_DISPLAY_SIZE")
	_ = v.BindEnv("transfers.pollinterval", "INPUT_TIMEOUT")
	_ = v.BindEnv("megacmd.simulate", "MEGA_SIMULATE")
	_ = v.BindEnv("megacmd.testmode", "UI_TEST_MODE")
	_ = v.BindEnv("megacmd.dir", "MEGACMD_PATH")

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/megaget.db")
	v.SetDefault("download.dir", environment.DefaultDownloadDir())
	v.SetDefault("transfers.listlimit", 50)
	v.SetDefault("transfers.pathdisplaysize", 80)
	v.SetDefault("transfers.pollinterval", "2s")
	v.SetDefault("megacmd.dir", environment.DefaultMegaCmdDir())
	v.SetDefault("megacmd.simulate", false)
	v.SetDefault("megacmd.testmode", false)
	v.SetDefault("history.path", "data/url-history.json")
	v.SetDefault("history.max", 50)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.registerpassword", "")
	v.SetDefault("auth.tokenttlminutes", 720)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "mega-downloads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Transfers.PollInterval = ParsePollInterval(cfg.Transfers.PollIntervalRaw)
	if cfg.Transfers.PollInterval < MinPollInterval {
		cfg.Transfers.PollInterval = MinPollInterval
	}
	if cfg.Transfers.ListLimit <= 0 {
		cfg.Transfers.ListLimit = 50
	}
	if cfg.Transfers.PathDisplaySize <= 0 {
		cfg.Transfers.PathDisplaySize = 80
	}
	if cfg.History.Max <= 0 {
		cfg.History.Max = 50
	}

	return cfg, nil
}

// ParsePollInterval interprets raw as a Go duration or as bare seconds.
// Unparseable or non-positive values fall back to MinPollInterval.
func ParsePollInterval(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MinPollInterval
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	var secs float64
	if _, err := fmt.Sscanf(raw, "%g", &secs); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return MinPollInterval
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
