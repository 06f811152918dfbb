package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "./configs/sid-sync.yml"

type WebConfig struct {
	Host string `yaml:"host"` // 0.0.0.0
	Port int    `yaml:"port"` // 8080
}

type BTTFNConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Master          string        `yaml:"master"` // IPv4 or TCD host name
	Port            int           `yaml:"port"`
	MulticastGroup  string        `yaml:"multicast_group"`
	MulticastPort   int           `yaml:"multicast_port"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	MaxFailures     int           `yaml:"max_failures"`
	Liveness        time.Duration `yaml:"liveness"`
	BootLiveness    time.Duration `yaml:"boot_liveness"`
	NetworkTT       bool          `yaml:"network_tt"` // local trigger asks the TCD
	ListenMulticast bool          `yaml:"listen_multicast"`
	Keypad          bool          `yaml:"keypad"`
}

type SequencerConfig struct {
	SkipAnimation   bool          `yaml:"skip_animation"`
	Strict          bool          `yaml:"strict"`
	IdleMode        int           `yaml:"idle_mode"`
	NoLead          bool          `yaml:"no_lead"`
	Lead            time.Duration `yaml:"lead"`
	FollowNightMode bool          `yaml:"follow_night_mode"`
	FollowFakePower bool          `yaml:"follow_fake_power"`
	UseSpeed        bool          `yaml:"use_speed"`
	ScreenSaver     time.Duration `yaml:"screen_saver"` // 0 = off
	Brightness      int           `yaml:"brightness"`   // 0..15
}

type WireConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"` // "/dev/ttyUSB0" or a FIFO
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // host[:port]
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Config struct {
	HostName  string          `yaml:"host_name"`
	LANIfName string          `yaml:"lan_if"`
	StatePath string          `yaml:"state_path"`
	FramesCSV string          `yaml:"frames_csv"`
	Tick      time.Duration   `yaml:"tick"`
	BTTFN     BTTFNConfig     `yaml:"bttfn"`
	Sequencer SequencerConfig `yaml:"sequencer"`
	Wire      WireConfig      `yaml:"wire"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Web       WebConfig       `yaml:"web"`
}

// Path returns the config file location: SID_CONFIG or the default.
func Path() string {
	if p := os.Getenv("SID_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads the config file over Defaults. A missing file is not an
// error; the defaults are used.
func Load() (*Config, error) {
	return LoadFile(Path())
}

func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	wd, _ := os.Getwd()
	log.Printf("[cfg] load config: path=%s, wd=%s", path, wd)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("[cfg] %s not found, using defaults", path)
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse yaml %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	log.Printf("[cfg] loaded: host=%s bttfn=%v master=%q wire=%v mqtt=%v",
		cfg.HostName, cfg.BTTFN.Enabled, cfg.BTTFN.Master, cfg.Wire.Enabled, cfg.MQTT.Enabled)
	return cfg, nil
}

// Validate checks ranges the rest of the program relies on.
func (c *Config) Validate() error {
	if c.Sequencer.IdleMode < 0 || c.Sequencer.IdleMode > 5 {
		return fmt.Errorf("sequencer.idle_mode %d out of range 0..5", c.Sequencer.IdleMode)
	}
	if c.Sequencer.Brightness < 0 || c.Sequencer.Brightness > 15 {
		return fmt.Errorf("sequencer.brightness %d out of range 0..15", c.Sequencer.Brightness)
	}
	if c.Sequencer.Lead < 0 || c.Sequencer.Lead > 65535*time.Millisecond {
		return fmt.Errorf("sequencer.lead %v out of range", c.Sequencer.Lead)
	}
	if c.Wire.Enabled && c.Wire.Device == "" {
		return fmt.Errorf("wire.device is required when wire is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if len(c.HostName) > 12 {
		return fmt.Errorf("host_name %q longer than 12 characters", c.HostName)
	}
	return nil
}

// LeadTime is the acceleration lead used for wired runs.
func (c *Config) LeadTime() time.Duration {
	if c.Sequencer.NoLead {
		return 0
	}
	return c.Sequencer.Lead
}
