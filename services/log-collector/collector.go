package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Collector zapisuje logovací zprávy z MQTT do souborů, jeden soubor na službu.
type Collector struct {
	dir    string
	logger *slog.Logger

	// mu serializuje zápisy, řádky dvou zpráv se nesmí proložit.
	mu sync.Mutex
}

// NewCollector - konstruktor.
func NewCollector(dir string, logger *slog.Logger) *Collector {
	return &Collector{dir: dir, logger: logger}
}

// HandleMessage je MQTT callback pro každou přijatou logovací zprávu.
func (c *Collector) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	c.Collect(msg.Topic(), msg.Payload())
}

// Collect zpracuje jednu zprávu z topicu logs/<služba>[/...].
func (c *Collector) Collect(topic string, payload []byte) {
	service, err := serviceFromTopic(topic)
	if err != nil {
		c.logger.Warn("Ignoruji zprávu se špatným formátem topicu", "topic", topic, "error", err)
		return
	}

	if err := c.appendLogToFile(service, payload); err != nil {
		c.logger.Error("Chyba při zápisu do souboru", "service", service, "error", err)
	}
}

// serviceFromTopic vrací druhý segment topicu ("logs/lecture-api" -> "lecture-api").
// Název se použije jako jméno souboru, proto odmítáme cokoliv, co by vedlo mimo adresář.
func serviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("topic %q nemá název služby", topic)
	}
	name := parts[1]
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `\`) {
		return "", fmt.Errorf("neplatný název služby %q", name)
	}
	return name, nil
}

// appendLogToFile otevře (nebo vytvoří) soubor a připíše na konec nový řádek.
// Pattern "Open-Write-Close" pro každý zápis snese rotaci logů (rsyslog).
func (c *Collector) appendLogToFile(service string, data []byte) error {
	filename := filepath.Join(c.dir, service+".log")

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	// slog JSON řádek už newline má, MQTT payload z jiných zdrojů nemusí.
	line := data
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append([]byte{}, data...), '\n')
	}
	if _, err := f.Write(line); err != nil {
		return err
	}
	return nil
}
