package main

import (
	"fmt"
	"sync/atomic"
)

// LogSink je cokoliv, co umí odeslat surový payload na topic bez čekání (Bridge).
type LogSink interface {
	PublishLog(topic string, payload []byte)
}

// MqttLogWriter implementuje rozhraní io.Writer.
// Vše, co se do něj zapíše, se odešle do MQTT na topic logs/<služba>.
// Sink se připojuje až po vytvoření bridge (Attach), do té doby se zápisy zahazují.
type MqttLogWriter struct {
	sink  atomic.Pointer[LogSink]
	topic string
}

// NewMqttLogWriter vytvoří writer pro topic "<prefix>/<serviceName>".
func NewMqttLogWriter(prefix, serviceName string) *MqttLogWriter {
	return &MqttLogWriter{topic: fmt.Sprintf("%s/%s", prefix, serviceName)}
}

// Attach nastaví sink, přes který se budou logy odesílat.
func (w *MqttLogWriter) Attach(sink LogSink) {
	w.sink.Store(&sink)
}

// Topic vrací cílový topic.
func (w *MqttLogWriter) Topic() string { return w.topic }

// Write je metoda vyžadovaná rozhraním io.Writer. slog ji volá pro každý záznam.
// Nikdy nevrací chybu, aby výpadek MQTT nezastavil logování na stdout.
func (w *MqttLogWriter) Write(p []byte) (n int, err error) {
	sink := w.sink.Load()
	if sink == nil {
		return len(p), nil
	}

	// Payload musíme zkopírovat, protože 'p' slog znovu použije.
	payload := make([]byte, len(p))
	copy(payload, p)

	(*sink).PublishLog(w.topic, payload)
	return len(p), nil
}
