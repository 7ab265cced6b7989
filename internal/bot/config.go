package bot

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/escolab/boletim/internal/grading"
)

type Config struct {
	Auth struct {
		Enabled          bool   `toml:"enabled"`
		RedisURL         string `toml:"redis_url"`
		TokenHeader      string `toml:"token_header"`
		TokenKeyTemplate string `toml:"token_key_template"`
	} `toml:"auth"`
	Bot struct {
		Token    string  `toml:"token"`
		AdminIDs []int64 `toml:"admin_ids"`
	} `toml:"bot"`
	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`
	Grading grading.Rules `toml:"grading"`
}

func ReadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Grading == (grading.Rules{}) {
		cfg.Grading = grading.DefaultRules()
	}

	return &cfg, nil
}
