package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	// 1. Inicializace vlastního loggeru (pouze na stdout, abychom viděli, že collector běží)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}
	logger.Info("Startuji Log Collector", "dir", cfg.LogDir, "topic", cfg.LogTopic)

	// 2. Příprava adresáře pro logy
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		logger.Error("Nelze vytvořit adresář pro logy", "error", err)
		os.Exit(1)
	}

	collector := NewCollector(cfg.LogDir, logger)

	// 3. Připojení k MQTT. Subscribe je v OnConnect, aby přežil reconnect.
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(collector.HandleMessage)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if token := client.Subscribe(cfg.LogTopic, 0, collector.HandleMessage); token.Wait() && token.Error() != nil {
			logger.Error("Subscribe failed", "topic", cfg.LogTopic, "error", token.Error())
			return
		}
		logger.Info("Poslouchám logy", "topic", cfg.LogTopic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("Spojení s MQTT ztraceno", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("MQTT Connection failed", "error", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	// 4. Wait loop
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Ukončuji Log Collector")
}
