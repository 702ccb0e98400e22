package config

import (
	"fmt"
	"time"
)

type Configs struct {
	Env string `toml:"env"`

	Database         DatabaseConfigs    `toml:"database"`
	ApiServer        ServerConfigs      `toml:"api_server"`
	PrometheusServer ServerConfigs      `toml:"prometheus_server"`
	Log              LogConfigs         `toml:"log"`
	Auth             AuthConfigs        `toml:"auth"`
	Redis            RedisConfigs       `toml:"redis"`
	Kafka            KafkaConfigs       `toml:"kafka"`
	Blockchain       BlockchainConfigs  `toml:"blockchain"`
	Award            AwardConfigs       `toml:"award"`
	Marketplace      MarketplaceConfigs `toml:"marketplace"`
}

type DatabaseConfigs struct {
	Driver   string `toml:"driver"` // mysql or sqlite
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	LogLevel string `toml:"log_level"`
}

func (d *DatabaseConfigs) ConnectionString() string {
	if d.Driver == "sqlite" {
		return d.Database
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

type ServerConfigs struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
}

func (c ServerConfigs) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type LogConfigs struct {
	Level string `toml:"level"`
}

type AuthConfigs struct {
	TokenSecret     string        `toml:"token_secret"`
	TokenIssuer     string        `toml:"token_issuer"`
	TokenExpiration time.Duration `toml:"token_expiration"`
	AllowedOrigins  []string      `toml:"allowed_origins"`
}

type RedisConfigs struct {
	Addr string `toml:"addr"`
}

type KafkaConfigs struct {
	Addr          string `toml:"addr"`
	ClientID      string `toml:"client_id"`
	ConsumerGroup string `toml:"consumer_group"`
}

// Enabled is false when no broker is configured. Depletion signals are then
// delivered in-process.
func (c KafkaConfigs) Enabled() bool {
	return c.Addr != ""
}

type BlockchainConfigs struct {
	Chain   string `toml:"chain"`
	ChainID int64  `toml:"chain_id"`
	RPC     string `toml:"rpc"`

	// SecretKey derives custodial issuer wallets together with the issuer
	// wallet nonce.
	SecretKey string `toml:"secret_key"`

	// Confirmations is the number of blocks on top of the receipt block
	// required before a transaction is considered final.
	Confirmations uint64        `toml:"confirmations"`
	PollInterval  time.Duration `toml:"poll_interval"`
	UseEip1559    bool          `toml:"use_eip_1559"`
	GasLimit      uint64        `toml:"gas_limit"`
}

type AwardConfigs struct {
	// ReservationTTL bounds how long a token stays locked by an award attempt
	// which never reached commit or release. It must exceed the chain
	// finality window.
	ReservationTTL time.Duration `toml:"reservation_ttl"`
}

type MarketplaceConfigs struct {
	// ReservationTimeout releases a payment_pending listing back to active.
	// Zero disables automatic release.
	ReservationTimeout time.Duration `toml:"reservation_timeout"`
	SweepInterval      time.Duration `toml:"sweep_interval"`
	SweepBatchSize     int           `toml:"sweep_batch_size"`
}
