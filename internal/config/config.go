package config

import (
	"fmt"
	"log"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/config.yaml"

type Config struct {
	Env         string  `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string  `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	RedisAddr   string  `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Lock        Lock    `yaml:"lock"`
	Catalog     Catalog `yaml:"catalog"`
	HTTPServer  `yaml:"http_server"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

// Lock bounds the per-(date, room) writer lock. Wait is how long a writer
// polls for a held lock before giving up with 423.
type Lock struct {
	TTL  time.Duration `yaml:"ttl" env-default:"5s"`
	Wait time.Duration `yaml:"wait" env-default:"2s"`
}

// Catalog lists the values bookings may reference. An empty list accepts any
// value.
type Catalog struct {
	Rooms    []string `yaml:"rooms"`
	Teachers []string `yaml:"teachers"`
	Types    []string `yaml:"types"`
}

func (c Catalog) HasRoom(room string) bool {
	return len(c.Rooms) == 0 || slices.Contains(c.Rooms, room)
}

func (c Catalog) Validate(room, teacher, typ string) error {
	if !c.HasRoom(room) {
		return fmt.Errorf("unknown room %q", room)
	}
	if len(c.Teachers) > 0 && !slices.Contains(c.Teachers, teacher) {
		return fmt.Errorf("unknown teacher %q", teacher)
	}
	if len(c.Types) > 0 && !slices.Contains(c.Types, typ) {
		return fmt.Errorf("unknown type %q", typ)
	}
	return nil
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}
