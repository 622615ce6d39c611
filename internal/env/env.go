package env

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

const environmentPrefix = "LABSANDBOX"

// Settings 是可通过环境变量提供的全部配置项，变量名统一带 LABSANDBOX_ 前缀
type Settings struct {
	Host       string        `envconfig:"HOST"`
	Port       int           `envconfig:"PORT"`
	UseHTTPS   *bool         `envconfig:"USE_HTTPS"`
	Username   string        `envconfig:"USERNAME"`
	Password   string        `envconfig:"PASSWORD"`
	Domain     string        `envconfig:"DOMAIN"`
	Token      string        `envconfig:"TOKEN"`
	ConfigFile string        `envconfig:"CONFIG_FILE"`
	Profile    string        `envconfig:"PROFILE"`
	RetryMax   int           `envconfig:"RETRY_MAX" default:"2"`
	Debug      bool          `envconfig:"DEBUG" default:"false"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`
	Timeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s"`
}

// Load 从环境变量中读取配置
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(environmentPrefix, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func CredentialsFromEnvironment() (string, string) {
	s, err := Load()
	if err != nil || s.Username == "" || s.Password == "" {
		return "", ""
	}
	return s.Username, s.Password
}

func ConfigFileFromEnvironment() string {
	s, err := Load()
	if err != nil {
		return ""
	}
	return s.ConfigFile
}

func ProfileFromEnvironment() string {
	s, err := Load()
	if err != nil {
		return ""
	}
	return s.Profile
}
