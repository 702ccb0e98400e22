package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "badgehub"

// Load reads the TOML file at path (optional), then overrides values from the
// environment, e.g. BADGEHUB_DATABASE_HOST or BADGEHUB_MARKETPLACE_RESERVATIONTIMEOUT.
func Load(path string) (Configs, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Configs{}, fmt.Errorf("cannot stat config file: %w", err)
		}

		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Configs{}, fmt.Errorf("cannot decode config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Configs{}, fmt.Errorf("cannot process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Configs{}, err
	}

	return cfg, nil
}

func Default() Configs {
	return Configs{
		Env: "local",
		Database: DatabaseConfigs{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     "3306",
			Database: "badgehub",
			LogLevel: "silent",
		},
		ApiServer:        ServerConfigs{Port: "8080"},
		PrometheusServer: ServerConfigs{Port: "9090"},
		Log:              LogConfigs{Level: "info"},
		Auth: AuthConfigs{
			TokenIssuer:     "badgehub",
			TokenExpiration: 24 * time.Hour,
		},
		Kafka: KafkaConfigs{
			ClientID:      "badgehub",
			ConsumerGroup: "badgehub-depletion",
		},
		Blockchain: BlockchainConfigs{
			Confirmations: 12,
			PollInterval:  3 * time.Second,
			GasLimit:      200_000,
		},
		Award: AwardConfigs{
			ReservationTTL: 10 * time.Minute,
		},
		Marketplace: MarketplaceConfigs{
			ReservationTimeout: 30 * time.Minute,
			SweepInterval:      time.Minute,
			SweepBatchSize:     100,
		},
	}
}

func (c Configs) Validate() error {
	if c.Database.Driver != "mysql" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Award.ReservationTTL <= 0 {
		return fmt.Errorf("award reservation ttl must be positive")
	}

	if c.Marketplace.ReservationTimeout < 0 {
		return fmt.Errorf("marketplace reservation timeout must not be negative")
	}

	if c.Marketplace.SweepInterval <= 0 {
		return fmt.Errorf("marketplace sweep interval must be positive")
	}

	return nil
}
