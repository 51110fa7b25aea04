package stratumd

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	yaml "gopkg.in/yaml.v2"
)

const (
	defaultListen       = ":123"
	defaultPollInterval = 5 * time.Millisecond
	defaultCacheSize    = 1000
)

var errInvalidRefID = errors.New("refid must be 1 to 4 ascii characters")

type Config struct {
	Listen string `yaml:"listen"`
	GPS    bool   `yaml:"gps"`
	Manual bool   `yaml:"manual"`
	// Clock is "device" (GPS/manual flags above) or "kernel". It is read
	// once at startup; a reload keeps the running clock.
	Clock        string        `yaml:"clock"`
	RefID        string        `yaml:"refid"`
	PollInterval time.Duration `yaml:"poll_interval"`

	Metric string `yaml:"metric"`
	GeoDB  string `yaml:"geodb"`

	DropCIDR  []string `yaml:"drop_cidr"`
	RateSec   int      `yaml:"rate_sec"`
	CacheSize int      `yaml:"cache_size"`
}

func NewConfigFromFile(path string) (cfg *Config, err error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return
	}
	cfg = &Config{}
	if err = yaml.UnmarshalStrict(p, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.setDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Clock == "" {
		c.Clock = "device"
	}
	if c.RefID == "" {
		c.RefID = "GPS"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaultCacheSize
	}
}

func (c *Config) Validate() (err error) {
	switch c.Clock {
	case "device", "kernel":
	default:
		return fmt.Errorf("unknown clock %q", c.Clock)
	}
	if _, err = parseRefID(c.RefID); err != nil {
		return
	}
	if c.RateSec < 0 {
		return fmt.Errorf("rate_sec must not be negative: %d", c.RateSec)
	}
	_, err = newDropTable(c.DropCIDR)
	return
}

// parseRefID pads short identifiers with zero bytes, "GPS" -> "GPS\0".
func parseRefID(s string) (id [4]byte, err error) {
	if len(s) == 0 || len(s) > 4 {
		return id, errInvalidRefID
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return id, errInvalidRefID
		}
	}
	copy(id[:], s)
	return
}

// ConfigStore publishes the live configuration. The responder loads it on
// every step, so a stored config takes effect on the next poll.
type ConfigStore struct {
	v atomic.Pointer[Config]
}

func NewConfigStore(cfg *Config) *ConfigStore {
	s := &ConfigStore{}
	s.Store(cfg)
	return s
}

func (s *ConfigStore) Load() *Config {
	return s.v.Load()
}

func (s *ConfigStore) Store(cfg *Config) {
	cfg.setDefaults()
	s.v.Store(cfg)
}

// Reload replaces the config with the file content. The old config stays
// in place when the file is invalid.
func (s *ConfigStore) Reload(path string) (cfg *Config, err error) {
	cfg, err = NewConfigFromFile(path)
	if err != nil {
		return
	}
	s.Store(cfg)
	return
}
