package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Record backends
const (
	RecordBackendInMem    = "inmem"
	RecordBackendFile     = "file"
	RecordBackendRedis    = "redis"
	RecordBackendPostgres = "postgres"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (local; default), TEST, QA, PROD
		AppName  string
		Build    string

		API          APIConfig
		Record       RecordConfig
		Portal       PortalConfig
		RollbarToken string
	}

	// APIConfig points at the remote platform API consumed by the session store.
	APIConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	// RecordConfig selects and configures the persisted session record backend.
	RecordConfig struct {
		Backend  string // inmem | file | redis | postgres
		Path     string // file backend
		Redis    RedisConfig
		Database DatabaseConfig
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	DatabaseConfig struct {
		Engine     string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		DisableTLS bool
	}

	PortalConfig struct {
		Host string
		Port int
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c PortalConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func NewConfig(build string) (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Elimu")
	v.SetDefault("apiBaseUrl", "http://localhost:8000/api")
	v.SetDefault("apiTimeout", 10*time.Second)
	v.SetDefault("recordBackend", RecordBackendFile)
	v.SetDefault("recordPath", filepath.Join(".", ".elimu"))
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDb", 0)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbUser", "")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbName", "elimu")
	v.SetDefault("dbDisableTls", true)
	v.SetDefault("portalHost", "localhost")
	v.SetDefault("portalPort", 3000)
	v.SetDefault("rollbarToken", "")

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		Env:      env,
		AppName:  v.GetString("appName"),
		Build:    build,
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("apiBaseUrl"), "/"),
			Timeout: v.GetDuration("apiTimeout"),
		},
		Record: RecordConfig{
			Backend: v.GetString("recordBackend"),
			Path:    v.GetString("recordPath"),
			Redis: RedisConfig{
				Addr:     v.GetString("redisAddr"),
				Password: v.GetString("redisPassword"),
				DB:       v.GetInt("redisDb"),
			},
			Database: DatabaseConfig{
				Engine:     v.GetString("dbEngine"),
				Host:       v.GetString("dbHost"),
				Port:       v.GetString("dbPort"),
				User:       v.GetString("dbUser"),
				Password:   v.GetString("dbPassword"),
				Name:       v.GetString("dbName"),
				DisableTLS: v.GetBool("dbDisableTls"),
			},
		},
		Portal: PortalConfig{
			Host: v.GetString("portalHost"),
			Port: v.GetInt("portalPort"),
		},
		RollbarToken: v.GetString("rollbarToken"),
	}

	if err := conf.validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return conf, nil
}

func (c *Config) validate() error {
	checks := vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.AppName, "appName"),
		vala.StringNotEmpty(c.API.BaseURL, "apiBaseUrl"),
		vala.StringNotEmpty(c.Record.Backend, "recordBackend"),
	)
	switch c.Record.Backend {
	case RecordBackendInMem:
	case RecordBackendFile:
		checks = checks.Validate(vala.StringNotEmpty(c.Record.Path, "recordPath"))
	case RecordBackendRedis:
		checks = checks.Validate(vala.StringNotEmpty(c.Record.Redis.Addr, "redisAddr"))
	case RecordBackendPostgres:
		checks = checks.Validate(
			vala.StringNotEmpty(c.Record.Database.Host, "dbHost"),
			vala.StringNotEmpty(c.Record.Database.Name, "dbName"),
		)
	default:
		return errors.Errorf("unknown record backend %q", c.Record.Backend)
	}
	return checks.Check()
}
