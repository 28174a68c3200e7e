package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type Config struct {
	// StaffUserIDs lists users whose score reports bypass dual confirmation
	// and who can lock matches and trigger summarization.
	StaffUserIDs []int64

	// ListenAddr is the HTTP API bind address, defaults to 127.0.0.1:3001.
	ListenAddr string

	// SQLPath is the path to the SQLite database.
	SQLPath string

	// WebToken authenticates staff-only API endpoints.
	WebToken string
}

func NewFromUserConfigDir() (*Config, error) {
	c := &Config{}
	if err := c.ReloadFromUserConfigDir(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) expandFromEnv() {
	vars := []struct {
		src string
		dst *string
	}{
		{"TENTATEK_LISTEN_ADDR", &c.ListenAddr},
		{"TENTATEK_SQL_PATH", &c.SQLPath},
		{"TENTATEK_WEB_TOKEN", &c.WebToken},
	}

	for _, v := range vars {
		if str := os.Getenv(v.src); str != "" {
			*v.dst = str
		}
	}

	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:3001"
	}
	if c.SQLPath == "" {
		c.SQLPath = "./tentatek.db"
	}
}

// IsStaff returns true if the given user can act with staff privileges on the
// match report protocol.
func (c *Config) IsStaff(userID int64) bool {
	for _, v := range c.StaffUserIDs {
		if v == userID {
			return true
		}
	}

	return false
}

func (c *Config) ReloadFromUserConfigDir() error {
	defer c.expandFromEnv()

	path, err := getOrCreateUserConfigPath()
	if err != nil {
		return err
	}
	log.Printf("debug: reading conf from %s", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		*c = Config{}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(c)
}

func getOrCreateUserConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(configDir, "tentatek")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.json"), nil
}

func (c *Config) Write() error {
	path, err := getOrCreateUserConfigPath()
	if err != nil {
		return err
	}
	log.Printf("debug: writing conf to %s", path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o700)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(f).Encode(c); err != nil {
		if err2 := f.Close(); err2 != nil {
			return fmt.Errorf("unable to close file (%s) after error: %w", err2, err)
		}

		return err
	}

	return f.Close()
}
