// Command blockpulse runs a host-side collector for block events: it wires a
// message bus and per-block trackers from a YAML config, consumes every
// message published toward the host, and serves metrics and health endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blockpulse-dev/blockpulse"
	"github.com/blockpulse-dev/blockpulse/channel"
	itrace "github.com/blockpulse-dev/blockpulse/internal/observability"
	"github.com/blockpulse-dev/blockpulse/pkg/observability"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	// Command line flags
	configFile = flag.String("config", getEnv("CONFIG_FILE", "config/blocks.yaml"), "Block configuration file")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 8080), "HTTP server port")

	// maxDroppedMessages is the bus drop count past which the health check
	// reports the collector degraded.
	maxDroppedMessages = uint64(100)
)

func main() {
	flag.Parse()

	log.Printf("Starting blockpulse collector v%s", Version)
	log.Printf("Config: %s, HTTP Port: %d", *configFile, *httpPort)

	if err := itrace.InitFromEnv(); err != nil {
		log.Printf("Warning: failed to initialize tracing: %v", err)
	}

	cfg, err := blockpulse.NewConfigLoader(&blockpulse.OSFileReader{}).LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The collector subscribes before the system starts so it observes the
	// trackers' started events, and acts as the parent uplink for content
	// announcements and editable saves.
	bus := channel.NewLocalBus()
	events, err := bus.Subscribe("collector")
	if err != nil {
		log.Fatalf("Failed to subscribe collector: %v", err)
	}
	bus.SetParent("collector")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sys, err := blockpulse.NewSystemWithBus(ctx, cfg, bus)
	if err != nil {
		log.Fatalf("Failed to build system: %v", err)
	}

	observability.InitMetrics()
	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())
	healthChecker.RegisterCheck(observability.BusCheck(bus.Dropped, maxDroppedMessages))
	if pinger, ok := sys.Store.(interface{ Ping(context.Context) error }); ok {
		healthChecker.RegisterCheck(observability.StoreCheck(pinger.Ping))
	}

	obsServer := observability.NewServer(*httpPort)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting HTTP server on :%d", *httpPort)
		if err := obsServer.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		consume(gctx, events)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		if err := sys.Close(shutdownCtx); err != nil {
			log.Printf("System shutdown error: %v", err)
		}
		if err := itrace.Shutdown(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("Error: %v", err)
	}
	log.Println("Collector stopped")
}

// consume drains host-bound messages until the context ends, recording
// per-type counts and delivery lag.
func consume(ctx context.Context, events <-chan *channel.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			observability.RecordCollectorMessage(msg.Type, messageLag(msg))
			log.Printf("Received %s", msg)
		}
	}
}

// messageLag derives the delay between message creation and receipt.
// Returns -1 when the timestamp is unparseable.
func messageLag(msg *channel.Message) time.Duration {
	created, err := time.Parse(time.RFC3339, msg.Timestamp)
	if err != nil {
		return -1
	}
	return time.Since(created)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
