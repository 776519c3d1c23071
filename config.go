package main

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	storeCSV    = "csv"
	storeSQLite = "sqlite"
)

// Config holds runtime settings. Values come from the environment, or from a
// yaml/.env file when one is given, and command-line flags override both.
type Config struct {
	Store        string `yaml:"store" env:"LIBRARY_STORE" env-default:"csv" env-description:"persistence backend: csv or sqlite"`
	BooksFile    string `yaml:"books_file" env:"LIBRARY_BOOKS_FILE" env-default:"BookData.csv"`
	AccountsFile string `yaml:"accounts_file" env:"LIBRARY_ACCOUNTS_FILE" env-default:"AccountData.csv"`
	DBFile       string `yaml:"db_file" env:"LIBRARY_DB_FILE" env-default:"library.db"`
	LogLevel     string `yaml:"log_level" env:"LIBRARY_LOG_LEVEL" env-default:"warn"`
	LogFormat    string `yaml:"log_format" env:"LIBRARY_LOG_FORMAT" env-default:"console"`
	Autosave     bool   `yaml:"autosave" env:"LIBRARY_AUTOSAVE" env-default:"true"`
}

// LoadConfig reads path when set, otherwise the environment alone.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// Validate normalises the store kind and rejects unknown ones.
func (c *Config) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case storeCSV:
		if c.BooksFile == "" || c.AccountsFile == "" {
			return fmt.Errorf("csv store needs both a books file and an accounts file")
		}
	case storeSQLite:
		if c.DBFile == "" {
			return fmt.Errorf("sqlite store needs a database file")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, storeCSV, storeSQLite)
	}
	return nil
}
