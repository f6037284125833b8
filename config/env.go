package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Env string

const (
	EnvDev  Env = "dev"
	EnvStg  Env = "stg"
	EnvProd Env = "prod"
)

func (e Env) IsProd() bool {
	return e == EnvProd
}

// Decode implements envconfig.Decoder.
func (e *Env) Decode(value string) error {
	switch v := Env(strings.ToLower(strings.TrimSpace(value))); v {
	case EnvDev, EnvStg, EnvProd:
		*e = v
		return nil
	default:
		return fmt.Errorf("unknown environment %q, expected one of dev, stg, prod", value)
	}
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honoured outside of production.
func Load() (*Config, error) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("ENV")), string(EnvProd)) {
		// Missing .env is the normal case in containers.
		_ = godotenv.Load()
	}

	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		return nil, err
	}
	conf.DatabaseURI = strings.Trim(conf.DatabaseURI, "'")
	if !strings.HasPrefix(conf.ServerPort, ":") {
		conf.ServerPort = ":" + conf.ServerPort
	}
	if conf.GRPCHealthPort != "" && !strings.HasPrefix(conf.GRPCHealthPort, ":") {
		conf.GRPCHealthPort = ":" + conf.GRPCHealthPort
	}
	conf.Admin = conf.Admin.Defaults()
	conf.Admin.PathPrefix = "/" + strings.Trim(conf.Admin.PathPrefix, "/")
	return &conf, nil
}
