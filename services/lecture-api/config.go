package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
)

const defaultPageSize = 50

// Config drží konfiguraci celé mikroslužby.
// Používáme princip 12-Factor App - konfigurace je oddělená od kódu v ENV proměnných.
// Defaulty odpovídají veřejnému test brokeru, na který posílají senzory.
type Config struct {
	// MQTT Konfigurace
	MQTTHost string `env:"MQTT_HOST,default=test.mosquitto.org"`
	MQTTPort int    `env:"MQTT_PORT,default=1883"`

	// MQTTClientID musí být unikátní pro každou běžící instanci.
	// Prázdná hodnota = vygeneruje se TECNM_CHIH-<uuid>.
	MQTTClientID string `env:"MQTT_CLIENT_ID"`

	// MQTTChannel: jediný topic, na kterém posloucháme i publikujeme.
	MQTTChannel   string        `env:"MQTT_CHANNEL,default=88e0f9a0/88e0f9a0-2248-41b5-bc8a-95f1484ce5ad"`
	MQTTKeepAlive time.Duration `env:"MQTT_KEEPALIVE,default=60s"`
	MQTTQoS       int           `env:"MQTT_QOS,default=0"`

	// Úložiště: "memory" (demo) nebo "postgres" (vyžaduje POSTGRES_URL).
	StoreBackend string        `env:"STORE_BACKEND,default=memory"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT,default=5s"`
	PageSize     int           `env:"PAGE_SIZE,default=50"`
	PostgresURL  string        `env:"POSTGRES_URL"`

	// ValkeyAddr: host:port cache posledních hodnot. Prázdné = cache vypnutá.
	ValkeyAddr string `env:"VALKEY_ADDR"`

	// App Konfigurace
	HTTPPort       string `env:"HTTP_PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogToMQTT      bool   `env:"LOG_TO_MQTT,default=true"`
	LogTopicPrefix string `env:"LOG_TOPIC_PREFIX,default=logs"`
	ServiceName    string `env:"SERVICE_NAME,default=lecture-api"`
}

// LoadConfig načte nastavení z ENV a ověří ho.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("chyba načtení konfigurace: %w", err)
	}

	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "TECNM_CHIH-" + uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate kontroluje hodnoty, které by jinak selhaly až za běhu.
func (c Config) Validate() error {
	if c.MQTTHost == "" {
		return errors.New("MQTT_HOST nesmí být prázdný")
	}
	if c.MQTTPort < 1 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT_PORT %d je mimo rozsah 1-65535", c.MQTTPort)
	}
	if c.MQTTChannel == "" {
		return errors.New("MQTT_CHANNEL nesmí být prázdný")
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("MQTT_QOS %d musí být 0, 1 nebo 2", c.MQTTQoS)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE %d musí být kladný", c.PageSize)
	}
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.PostgresURL == "" {
			return errors.New("STORE_BACKEND=postgres vyžaduje POSTGRES_URL")
		}
	default:
		return fmt.Errorf("neznámý STORE_BACKEND %q (memory|postgres)", c.StoreBackend)
	}
	return nil
}

// BrokerURL vrací adresu brokera ve formátu, kterému rozumí paho.
func (c Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTHost, c.MQTTPort)
}

// Bridge vrací část konfigurace pro Bridge.
func (c Config) Bridge() BridgeConfig {
	return BridgeConfig{
		BrokerURL:    c.BrokerURL(),
		ClientID:     c.MQTTClientID,
		Channel:      c.MQTTChannel,
		QoS:          byte(c.MQTTQoS),
		KeepAlive:    c.MQTTKeepAlive,
		StoreTimeout: c.StoreTimeout,
	}
}

// SlogLevel převede LOG_LEVEL na slog.Level. Neznámá hodnota = info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
