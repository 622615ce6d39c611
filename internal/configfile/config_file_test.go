//go:build unit
// +build unit

package configfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(configFile, []byte(`
[default]
host = "cs.example.com"
username = "admin"
password = "admin"
domain = "Global"

[lab]
host = "lab.example.com"
port = 443
use_https = true
token = "TOKEN_2"
	`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("LABSANDBOX_CONFIG_FILE", configFile)
	reset()
	defer reset()
	if err = load(); err != nil {
		t.Fatal(err)
	}
	if len(profileConfigs) != 2 {
		t.Fatal("Unexpected profile configs")
	}
	if profileConfigs["default"].Host != "cs.example.com" {
		t.Fatal("Unexpected host")
	}
	if profileConfigs["default"].UseHTTPS != nil {
		t.Fatal("Unexpected use_https")
	}

	username, password, err := CredentialsFromConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if username != "admin" || password != "admin" {
		t.Fatal("Unexpected credentials")
	}

	t.Setenv("LABSANDBOX_PROFILE", "lab")
	profile, err := ProfileFromConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if profile.Port != 443 || profile.UseHTTPS == nil || !*profile.UseHTTPS {
		t.Fatal("Unexpected lab profile")
	}
	if profile.Token != "TOKEN_2" {
		t.Fatal("Unexpected token")
	}
	if username, _, _ = CredentialsFromConfigFile(); username != "" {
		t.Fatal("lab profile should carry no credentials")
	}

	t.Setenv("LABSANDBOX_PROFILE", "missing")
	if profile, err = ProfileFromConfigFile(); err != nil || profile != nil {
		t.Fatal("missing profile should be nil")
	}
}

func TestLoadYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configFile, []byte(`
default:
  host: yaml.example.com
  port: 82
  username: yaml-user
  password: yaml-pass
`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("LABSANDBOX_CONFIG_FILE", configFile)
	reset()
	defer reset()

	profile, err := ProfileFromConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if profile.Host != "yaml.example.com" || profile.Port != 82 {
		t.Fatalf("Unexpected profile: %+v", profile)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("LABSANDBOX_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.toml"))
	reset()
	defer reset()

	if _, err := ProfileFromConfigFile(); err == nil {
		t.Fatal("expected error for explicitly configured missing file")
	}
}
