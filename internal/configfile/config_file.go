package configfile

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/labsandbox/go-sdk/internal/env"
)

type profileConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	UseHTTPS *bool  `toml:"use_https" yaml:"use_https"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	Domain   string `toml:"domain" yaml:"domain"`
	Token    string `toml:"token" yaml:"token"`
}

// Profile 是配置文件中单个 profile 的内容
type Profile struct {
	Host     string
	Port     int
	UseHTTPS *bool
	Username string
	Password string
	Domain   string
	Token    string
}

var (
	profileConfigs      map[string]*profileConfig
	profileConfigsError error
	profileConfigsOnce  sync.Once
)

// ProfileFromConfigFile 读取当前 profile，配置文件不存在时返回 nil
func ProfileFromConfigFile() (*Profile, error) {
	profile, err := getProfile()
	if err != nil || profile == nil {
		return nil, err
	}
	return &Profile{
		Host:     profile.Host,
		Port:     profile.Port,
		UseHTTPS: profile.UseHTTPS,
		Username: profile.Username,
		Password: profile.Password,
		Domain:   profile.Domain,
		Token:    profile.Token,
	}, nil
}

func CredentialsFromConfigFile() (string, string, error) {
	profile, err := getProfile()
	if err != nil || profile == nil {
		return "", "", err
	} else if profile.Username == "" || profile.Password == "" {
		return "", "", nil
	}
	return profile.Username, profile.Password, nil
}

func getProfile() (*profileConfig, error) {
	if err := load(); err != nil {
		return nil, err
	}
	profileName := env.ProfileFromEnvironment()
	if profileName == "" {
		profileName = "default"
	}
	profile, ok := profileConfigs[profileName]
	if !ok || profile == nil {
		return nil, nil
	}
	return profile, nil
}

func load() error {
	profileConfigsOnce.Do(func() {
		profileConfigsError = _load()
	})
	return profileConfigsError
}

func reset() {
	profileConfigs = nil
	profileConfigsError = nil
	profileConfigsOnce = sync.Once{}
}

func _load() error {
	configFilePath := env.ConfigFileFromEnvironment()
	explicit := configFilePath != ""
	if !explicit {
		configFilePath = getDefaultConfigFilePath()
	}
	content, err := os.ReadFile(configFilePath)
	if os.IsNotExist(err) && !explicit {
		return nil
	} else if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(configFilePath)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, &profileConfigs)
	default:
		_, err = toml.Decode(string(content), &profileConfigs)
		return err
	}
}

func getDefaultConfigFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}
	return filepath.Join(homeDir, ".labsandbox", "config.toml")
}
