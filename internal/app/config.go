package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/escolab/boletim/internal/grading"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// GSheetConfig describes one scheduled gradebook export target.
type GSheetConfig struct {
	CredentialsPath string  `toml:"credentials_path"`
	Schedule        string  `toml:"schedule"`
	SheetID         string  `toml:"sheet_id"`
	SheetName       string  `toml:"sheet_name"`
	StudentsRange   string  `toml:"students_range"`
	GradesOrigin    string  `toml:"grades_origin"`
	OfferingIDs     []int64 `toml:"offering_ids"`
}

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		RedisURL         string `toml:"redis_url"`
		TokenHeader      string `toml:"token_header"`
		TokenKeyTemplate string `toml:"token_key_template"`
	} `toml:"auth"`

	API struct {
		ActorHeader     string         `toml:"actor_header"`
		RoleHeader      string         `toml:"role_header"`
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Grading grading.Rules `toml:"grading"`

	GSheet map[string][]GSheetConfig `toml:"gsheet"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}

	if config.Grading == (grading.Rules{}) {
		config.Grading = grading.DefaultRules()
	}

	logger.Debug.Printf("Loaded grading rules: %+v", config.Grading)

	return &config, nil
}
