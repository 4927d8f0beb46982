// Package config loads the driver's configuration from a TOML file, with
// environment-variable overrides, following the teacher's viper-based
// configuration loader (generalized here from YAML to TOML to match the
// driver's console/needle-oriented configuration shape).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"autotest/pkg/derr"
)

// Config is the root configuration for a driver instance.
type Config struct {
	Machine   string            `mapstructure:"machine"`
	Arch      string            `mapstructure:"arch"`
	OS        string            `mapstructure:"os"`
	LogDir    string            `mapstructure:"log_dir"`
	NeedleDir string            `mapstructure:"needle_dir"`
	Console   ConsoleConfig     `mapstructure:"console"`
	Env       map[string]string `mapstructure:"env"`
}

// ConsoleConfig groups the three transport configurations. Any subset may
// be left with Enable=false; the driver facade treats an unconfigured
// transport as absent for precedence and routing purposes.
type ConsoleConfig struct {
	SSH    SSHConfig    `mapstructure:"ssh"`
	Serial SerialConfig `mapstructure:"serial"`
	VNC    VNCConfig    `mapstructure:"vnc"`
}

// SSHAuthType selects between private-key and password authentication.
type SSHAuthType string

const (
	SSHAuthPrivateKey SSHAuthType = "private_key"
	SSHAuthPassword   SSHAuthType = "password"
)

type SSHAuthConfig struct {
	Type       SSHAuthType `mapstructure:"type"`
	PrivateKey string      `mapstructure:"private_key"`
	Password   string      `mapstructure:"password"`
}

type SSHConfig struct {
	Enable   bool          `mapstructure:"enable"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Auth     SSHAuthConfig `mapstructure:"auth"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SerialConfig struct {
	Enable       bool          `mapstructure:"enable"`
	SerialFile   string        `mapstructure:"serial_file"`
	BaudRate     int           `mapstructure:"baud_rate"`
	Linebreak    string        `mapstructure:"linebreak"`
	DisableEcho  bool          `mapstructure:"disable_echo"`
	AutoLogin    bool          `mapstructure:"auto_login"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
}

type VNCConfig struct {
	Enable        bool    `mapstructure:"enable"`
	Host          string  `mapstructure:"host"`
	Port          int     `mapstructure:"port"`
	Password      string  `mapstructure:"password"`
	ScreenshotDir string  `mapstructure:"screenshot_dir"`
	Threshold     float64 `mapstructure:"threshold"`
}

// Load reads configuration from the given path (if non-empty) or the
// default search locations, applying AUTOTEST_-prefixed environment
// variable overrides on top, following the teacher's viper wiring.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("autotest")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.autotest")
		v.AddConfigPath("/etc/autotest/")
	}

	v.SetEnvPrefix("AUTOTEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("console.serial.baud_rate", 115200)
	v.SetDefault("console.vnc.threshold", 0.95)
	v.SetDefault("log_dir", "./autotest-logs")
	v.SetDefault("needle_dir", "./needles")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &derr.ConfigInvalidError{Detail: fmt.Sprintf("error reading config file: %s", err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &derr.ConfigInvalidError{Detail: fmt.Sprintf("error unmarshaling config: %s", err)}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if !c.Console.SSH.Enable && !c.Console.Serial.Enable && !c.Console.VNC.Enable {
		return &derr.ConfigInvalidError{Detail: "at least one console transport (ssh, serial, vnc) must be enabled"}
	}
	if c.Console.SSH.Enable && c.Console.SSH.Host == "" {
		return &derr.ConfigInvalidError{Detail: "console.ssh.host is required when ssh is enabled"}
	}
	if c.Console.Serial.Enable && c.Console.Serial.SerialFile == "" {
		return &derr.ConfigInvalidError{Detail: "console.serial.serial_file is required when serial is enabled"}
	}
	if c.Console.VNC.Enable && c.Console.VNC.Host == "" {
		return &derr.ConfigInvalidError{Detail: "console.vnc.host is required when vnc is enabled"}
	}
	return nil
}

// GetEnv returns the configured env mapping's value for key, and whether
// it was present.
func (c *Config) GetEnv(key string) (string, bool) {
	v, ok := c.Env[key]
	return v, ok
}
