package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ConnState je stav MQTT spojení, jak ho vidí bridge.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateSubscribed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// ErrNotConnected: publish bez aktivního spojení s brokerem.
var ErrNotConnected = errors.New("MQTT klient není připojen")

// PublishError vrací Bridge.Publish, když zprávu nelze předat MQTT klientovi.
type PublishError struct {
	Reason string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish selhal (%s): %v", e.Reason, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Transport je podmnožina mqtt.Client, kterou bridge skutečně používá.
// mqtt.Client ji splňuje, v testech ji nahrazuje fake klient.
type Transport interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// EventHandler jsou události MQTT klienta, na které bridge reaguje.
type EventHandler interface {
	OnConnect()
	OnDisconnect(err error)
	OnMessage(topic string, payload []byte)
}

// LatestWriter zapisuje poslední hodnotu zařízení (Valkey cache).
type LatestWriter interface {
	Put(ctx context.Context, rec Record) error
}

// BridgeConfig je část konfigurace, kterou potřebuje bridge.
type BridgeConfig struct {
	BrokerURL    string
	ClientID     string
	Channel      string
	QoS          byte
	KeepAlive    time.Duration
	StoreTimeout time.Duration
}

// Bridge propojuje MQTT kanál se Store a s HTTP API.
// Příchozí zprávy ukládá do Store, na požádání API publikuje nové lectury.
// Vlastní jediné MQTT spojení, nikdo jiný na klienta nesahá.
type Bridge struct {
	cfg     BridgeConfig
	store   Store
	cache   LatestWriter
	metrics *Metrics
	logger  *slog.Logger

	newClient func(opts *mqtt.ClientOptions) Transport

	// mu chrání client (nastavuje Start, nuluje Close).
	mu     sync.Mutex
	client Transport

	state atomic.Int32
}

var _ EventHandler = (*Bridge)(nil)

// NewBridge - konstruktor. Spojení se otevírá až voláním Start.
func NewBridge(cfg BridgeConfig, store Store, metrics *Metrics, logger *slog.Logger) *Bridge {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Bridge{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		logger:  logger,
		newClient: func(opts *mqtt.ClientOptions) Transport {
			return mqtt.NewClient(opts)
		},
	}
}

// SetLatestCache zapne zápis poslední hodnoty zařízení po každém uložení.
func (b *Bridge) SetLatestCache(c LatestWriter) {
	b.cache = c
}

// Channel vrací název MQTT kanálu (subscribe i publish).
func (b *Bridge) Channel() string { return b.cfg.Channel }

// State vrací aktuální stav spojení.
func (b *Bridge) State() ConnState {
	return ConnState(b.state.Load())
}

func (b *Bridge) setState(s ConnState) {
	old := ConnState(b.state.Swap(int32(s)))
	if old != s {
		b.logger.Info("Změna stavu MQTT", "from", old.String(), "to", s.String())
	}
}

// ClientOptions sestaví nastavení paho klienta včetně všech callbacků.
// Reconnect řeší knihovna (AutoReconnect), bridge si jen po každém připojení
// znovu udělá subscribe.
func (b *Bridge) ClientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(b.cfg.ClientID).
		SetKeepAlive(b.cfg.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		// Callbacky zpráv běží každý ve vlastní goroutině, pomalý Insert neblokuje síťovou smyčku.
		SetOrderMatters(false)

	opts.SetOnConnectHandler(func(mqtt.Client) { b.OnConnect() })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { b.OnDisconnect(err) })
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		b.logger.Info("Pokus o znovupřipojení k MQTT", "broker", b.cfg.BrokerURL)
		b.setState(StateConnecting)
	})
	opts.SetDefaultPublishHandler(b.handleMessage)
	return opts
}

// Start vytvoří klienta a blokuje, dokud broker nepotvrdí připojení.
// Při chybě je klient uvolněn a bridge zůstává ve stavu disconnected.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.client != nil {
		b.mu.Unlock()
		return errors.New("bridge už je spuštěný")
	}
	client := b.newClient(b.ClientOptions())
	b.client = client
	b.mu.Unlock()

	b.setState(StateConnecting)
	b.logger.Info("Připojuji se k MQTT", "broker", b.cfg.BrokerURL, "client_id", b.cfg.ClientID)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		b.Close()
		return fmt.Errorf("připojení k %s selhalo: %w", b.cfg.BrokerURL, token.Error())
	}
	return nil
}

// Close odpojí klienta (250ms na doručení rozpracovaných zpráv).
// Lze volat opakovaně i po neúspěšném Start.
func (b *Bridge) Close() {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
		b.logger.Info("MQTT klient odpojen")
	}
	b.setState(StateDisconnected)
}

func (b *Bridge) transport() Transport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

// OnConnect se volá po každém úspěšném (re)connectu.
// Subscribe se dělá vždy znovu, jinak by po reconnectu bez session zůstal klient bez odběru.
func (b *Bridge) OnConnect() {
	b.metrics.connects.Inc()
	b.setState(StateConnected)
	b.logger.Info("Připojeno k MQTT", "broker", b.cfg.BrokerURL)

	client := b.transport()
	if client == nil {
		return
	}

	if token := client.Subscribe(b.cfg.Channel, b.cfg.QoS, b.handleMessage); token.Wait() && token.Error() != nil {
		b.logger.Error("Subscribe selhal", "topic", b.cfg.Channel, "error", token.Error())
		return
	}
	b.setState(StateSubscribed)
	b.logger.Info("Poslouchám na topicu", "topic", b.cfg.Channel)
}

// OnDisconnect jen loguje. Znovupřipojení obstará paho (AutoReconnect).
func (b *Bridge) OnDisconnect(err error) {
	b.setState(StateConnecting)
	b.logger.Warn("Spojení s MQTT ztraceno, klient se pokusí připojit znovu", "error", err)
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	b.OnMessage(msg.Topic(), msg.Payload())
}

// OnMessage zpracuje jednu příchozí zprávu: JSON -> Record -> Store.
// Vadná zpráva se zaloguje a zahodí. Nic z toho nesmí shodit callback.
func (b *Bridge) OnMessage(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.incDropped(dropPanic)
			b.logger.Error("Panika při zpracování zprávy", "topic", topic, "panic", fmt.Sprint(r))
		}
	}()

	b.metrics.received.Inc()
	b.logger.Debug("Zpráva přijata", "topic", topic, "payload", string(payload))

	rec, err := ParseRecord(payload)
	if err != nil {
		b.metrics.incDropped(dropDecode)
		b.logger.Warn("Zpráva odmítnuta", "topic", topic, "důvod", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.StoreTimeout)
	defer cancel()

	if err := b.store.Insert(ctx, rec); err != nil {
		b.metrics.incDropped(dropStore)
		b.logger.Error("Chyba při ukládání lectury", "device_id", rec.DeviceID, "error", err)
		return
	}
	b.metrics.stored.Inc()
	b.logger.Info("Lectura přijata přes MQTT", "lecture", rec)

	// Cache není zdroj pravdy, chyba zde záznam neruší.
	if b.cache != nil {
		if err := b.cache.Put(ctx, rec); err != nil {
			b.logger.Warn("Nepodařilo se aktualizovat poslední hodnotu", "device_id", rec.DeviceID, "error", err)
		}
	}
}

// Publish pošle lecturu na kanál. Nečeká na potvrzení brokerem,
// vrací se hned, jak klient zprávu převezme.
func (b *Bridge) Publish(rec Record) error {
	client := b.transport()
	if client == nil || b.State() < StateConnected || !client.IsConnected() {
		b.metrics.incPublished(false)
		return &PublishError{Reason: "stav " + b.State().String(), Err: ErrNotConnected}
	}

	payload, err := rec.Marshal()
	if err != nil {
		b.metrics.incPublished(false)
		return &PublishError{Reason: "serializace", Err: err}
	}

	token := client.Publish(b.cfg.Channel, b.cfg.QoS, false, payload)

	// Pokud token skončil okamžitě, mohl to být odmítnutý publish (např. odpojení mezitím).
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			b.metrics.incPublished(false)
			return &PublishError{Reason: "klient odmítl zprávu", Err: err}
		}
	default:
	}

	b.metrics.incPublished(true)
	go b.awaitPublish(token, rec.DeviceID)
	return nil
}

func (b *Bridge) awaitPublish(token mqtt.Token, deviceID int64) {
	<-token.Done()
	if err := token.Error(); err != nil {
		b.logger.Error("Chyba při publikaci do MQTT", "device_id", deviceID, "error", err)
		return
	}
	b.logger.Debug("Lectura publikována", "topic", b.cfg.Channel, "device_id", deviceID)
}

// PublishLog odešle surový payload bez čekání a bez logování (volá ho log writer).
// Bez spojení se payload tiše zahodí.
func (b *Bridge) PublishLog(topic string, payload []byte) {
	client := b.transport()
	if client == nil || b.State() < StateConnected {
		return
	}
	client.Publish(topic, 0, false, payload)
}
