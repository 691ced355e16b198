// Package config loads deployment settings. Sources, lowest precedence
// first: built-in defaults, the TOML file, a .env file, CHARGECTL_*
// environment variables and command-line flags.
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/chargectl/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "CHARGECTL"
	DefaultConfigFile = "/etc/chargectl.toml"
	DefaultEnvFile    = ".env"
	DefaultLogLevel   = LogLevelInfo
	DefaultBackend    = BackendLinux

	defaultServerAddress = "192.168.0.155:9000"
	defaultMQTTBroker    = "tcp://localhost:1883"
	defaultTopicPrefix   = "chargectl"
	defaultRedisAddress  = "localhost:6379"
	defaultKeyPrefix     = "chargectl"
	defaultJournalPath   = "/var/lib/chargectl/journal.db"
	defaultBatchSize     = 16
	defaultBatchTimeout  = 5 * time.Second
	defaultI2CDevice     = "/dev/i2c-1"
	defaultW1Dir         = "/sys/bus/w1/devices"
	defaultGPIODir       = "/sys/class/gpio"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Backend  string         `mapstructure:"backend"`
	Console  bool           `mapstructure:"console"`
	PIDDir   string         `mapstructure:"pid_dir"`
	Server   ServerConfig   `mapstructure:"server"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Hardware HardwareConfig `mapstructure:"hardware"`

	// ConfigFile is the file that was read, empty if none.
	ConfigFile string `mapstructure:"-"`
}

type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Reconnect bool   `mapstructure:"reconnect"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type JournalConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Path         string        `mapstructure:"path"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type HardwareConfig struct {
	I2CDevice string `mapstructure:"i2c_device"`
	W1Dir     string `mapstructure:"w1_dir"`
	GPIODir   string `mapstructure:"gpio_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("backend", string(DefaultBackend))
	v.SetDefault("console", false)
	v.SetDefault("pid_dir", os.TempDir())

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.address", defaultServerAddress)
	v.SetDefault("server.reconnect", true)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", defaultMQTTBroker)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", defaultTopicPrefix)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", defaultRedisAddress)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", defaultKeyPrefix)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", defaultJournalPath)
	v.SetDefault("journal.batch_size", defaultBatchSize)
	v.SetDefault("journal.batch_timeout", defaultBatchTimeout)

	v.SetDefault("hardware.i2c_device", defaultI2CDevice)
	v.SetDefault("hardware.w1_dir", defaultW1Dir)
	v.SetDefault("hardware.gpio_dir", defaultGPIODir)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"backend":       "backend",
	"console":       "console",
	"pid-dir":       "pid_dir",
	"server":        "server.address",
	"mqtt-broker":   "mqtt.broker",
	"redis-address": "redis.address",
	"journal":       "journal.enabled",
	"journal-path":  "journal.path",
	"i2c-device":    "hardware.i2c_device",
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("chargectl", pflag.ContinueOnError)
	flags.String("config", "", "Path to the TOML config file (default "+DefaultConfigFile+")")
	flags.String("env-file", DefaultEnvFile, "Path to a .env file with credentials")
	flags.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	flags.String("backend", string(DefaultBackend), "Hardware backend (linux, sim)")
	flags.Bool("console", false, "Start the interactive operator console")
	flags.String("pid-dir", os.TempDir(), "Directory for the PID file")
	flags.String("server", defaultServerAddress, "Operator server address (host:port)")
	flags.Bool("no-server", false, "Disable the operator TCP link")
	flags.Bool("no-reconnect", false, "Do not redial the operator server after a disconnect")
	flags.String("mqtt-broker", defaultMQTTBroker, "MQTT broker URL; setting it enables MQTT")
	flags.String("redis-address", defaultRedisAddress, "Redis address; setting it enables Redis")
	flags.Bool("journal", false, "Record events in the SQLite journal")
	flags.String("journal-path", defaultJournalPath, "Path to the journal database")
	flags.String("i2c-device", defaultI2CDevice, "I2C bus device")
	return flags
}

// Load resolves the configuration for the given command-line arguments,
// without the program name.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if err := loadEnvFile(flags); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	configFile, err := readConfigFile(v, flags)
	if err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.ConfigFile = configFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile exports the variables of the .env file. Variables already
// set in the environment win. A missing default file is not an error.
func loadEnvFile(flags *pflag.FlagSet) error {
	path, _ := flags.GetString("env-file")
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !flags.Changed("env-file") {
			return nil
		}
		return errors.New().Wrap(errors.ErrReadConfig, err)
	}
	return nil
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet) (string, error) {
	errFactory := errors.New()

	path, _ := flags.GetString("config")
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigFile
		if _, err := os.Stat(path); err != nil {
			return "", nil
		}
	}

	v.SetConfigFile(path)
	if filepath.Ext(path) != ".toml" {
		v.SetConfigType("toml")
	}
	if err := v.ReadInConfig(); err != nil {
		return "", errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return path, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	errFactory := errors.New()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	if flags.Changed("no-server") {
		v.Set("server.enabled", false)
	}
	if flags.Changed("no-reconnect") {
		v.Set("server.reconnect", false)
	}
	if flags.Changed("mqtt-broker") {
		v.Set("mqtt.enabled", true)
	}
	if flags.Changed("redis-address") {
		v.Set("redis.enabled", true)
	}

	return nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if !Backend(c.Backend).IsValid() {
		return errFactory.WithData(errors.ErrInvalidBackend, c.Backend)
	}
	if c.Server.Enabled && c.Server.Address == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "server.address is empty")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "mqtt.broker is empty")
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "redis.address is empty")
	}
	if c.Redis.DB < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "redis.db is negative")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "journal.path is empty")
	}
	if c.Journal.BatchSize < 0 || c.Journal.BatchTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "journal batching is negative")
	}
	if c.PIDDir == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "pid_dir is empty")
	}

	return nil
}
