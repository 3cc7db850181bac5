package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// lectureStore je Store, který umí říct i velikost stránky (pro odpověď API).
type lectureStore interface {
	Store
	PageSize() int
}

func main() {
	// 1. Načtení Konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// 2. Logger: JSON na stdout, volitelně i do MQTT (logs/<služba>).
	// MQTT writer dostane bridge až později, první řádky jdou jen na stdout.
	mqttWriter := NewMqttLogWriter(cfg.LogTopicPrefix, cfg.ServiceName)
	var out io.Writer = os.Stdout
	if cfg.LogToMQTT {
		out = io.MultiWriter(os.Stdout, mqttWriter)
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// 3. Graceful Shutdown: context se zruší při SIGINT (Ctrl+C) nebo SIGTERM (docker stop).
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, mqttWriter); err != nil {
		logger.Error("Služba skončila chybou", "error", err)
		os.Exit(1)
	}
	logger.Info("Služba ukončena")
}

// run obsahuje celý životní cyklus. Všechny zdroje se uvolní přes defer,
// i když start selže v půlce.
func run(ctx context.Context, cfg Config, logger *slog.Logger, mqttWriter *MqttLogWriter) error {
	logger.Info("Spouštím Lecture API",
		"broker", cfg.BrokerURL(),
		"channel", cfg.MQTTChannel,
		"client_id", cfg.MQTTClientID,
		"store", cfg.StoreBackend,
	)

	// 4. Úložiště
	var (
		store  lectureStore
		sizeFn func() float64
	)
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.PostgresURL, cfg.PageSize)
		if err != nil {
			return fmt.Errorf("nelze se připojit k DB: %w", err)
		}
		defer pg.Close()
		store = pg
		logger.Info("Databáze připojena")
	default:
		mem := NewMemoryStore(cfg.PageSize)
		store = mem
		sizeFn = func() float64 { return float64(mem.Len()) }
	}

	// 5. Metriky do vlastního registru (bez globálního stavu)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg, sizeFn)

	// 6. Bridge a volitelná cache posledních hodnot
	bridge := NewBridge(cfg.Bridge(), store, metrics, logger)
	api := NewAPIHandler(store, bridge, logger)

	if cfg.ValkeyAddr != "" {
		cache, err := NewLatestCache(ctx, cfg.ValkeyAddr)
		if err != nil {
			return err
		}
		defer cache.Close()
		bridge.SetLatestCache(cache)
		api.SetLatestReader(cache)
		logger.Info("Valkey připojen", "addr", cfg.ValkeyAddr)
	}

	// Od teď mohou logy odcházet i do MQTT.
	mqttWriter.Attach(bridge)

	// Bez spojení při startu nemá smysl běžet, reconnecty už pak řeší paho.
	if err := bridge.Start(); err != nil {
		return err
	}
	defer bridge.Close()

	// 7. Router
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           CorsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 8. HTTP server v goroutině, hlavní vlákno čeká na signál nebo pád serveru.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server naslouchá", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Přijat signál ukončení, vypínám...")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server spadl: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server se neukončil včas", "error", err)
	}
	// Zde proběhnou defery (disconnect MQTT, close Valkey, close DB pool)
	return nil
}
