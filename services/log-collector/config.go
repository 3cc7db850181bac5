package main

import (
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
)

// Config drží veškeré nastavení pro službu Log Collector.
// Všechny hodnoty jsou načítány z Environment proměnných.
type Config struct {
	// MQTTBroker: Adresa brokera (např. tcp://mosquitto:1883)
	MQTTBroker string `env:"MQTT_BROKER,default=tcp://mosquitto:1883"`

	// MQTTClientID: Unikátní ID klienta.
	MQTTClientID string `env:"MQTT_CLIENT_ID,default=log-collector"`

	// LogTopic: Topic, na kterém posloucháme logy (např. "logs/#")
	LogTopic string `env:"LOG_TOPIC,default=logs/#"`

	// LogDir: Cesta k adresáři, kam budeme ukládat soubory s logy.
	// V Dockeru to bude typicky namapovaný volume.
	LogDir string `env:"LOG_DIR,default=/var/log/iot-app"`
}

// LoadConfig načte konfiguraci z OS. Pokud proměnná chybí, použije default.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("chyba načtení konfigurace: %w", err)
	}
	if cfg.LogDir == "" {
		return Config{}, errors.New("LOG_DIR nesmí být prázdný")
	}
	return cfg, nil
}
