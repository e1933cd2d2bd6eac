package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/advertise"
	"github.com/muurk/esp32aq/internal/config"
	"github.com/muurk/esp32aq/internal/hub"
	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/metrics"
	"github.com/muurk/esp32aq/internal/mqtt"
	"github.com/muurk/esp32aq/internal/scheduler"
	"github.com/muurk/esp32aq/internal/server"
)

// dialMQTT is replaced in tests
var dialMQTT = func(cfg config.MQTTConfig) (paho.Client, error) {
	return mqtt.Dial(cfg)
}

// bridge wires the hub to its presentation adapters
type bridge struct {
	cfg    *config.Config
	sched  *scheduler.Scheduler
	hub    *hub.Hub
	server *server.Server
	logger *zap.Logger

	mqttClient paho.Client
	publisher  *mqtt.Publisher // nil when MQTT is not configured

	setups sync.WaitGroup
}

// newBridge builds every component from cfg. Nothing runs until run.
func newBridge(cfg *config.Config, opts ...hub.Option) (*bridge, error) {
	b := &bridge{
		cfg:    cfg,
		sched:  scheduler.New(),
		logger: logging.Named("bridge"),
	}

	if cfg.MQTT != nil {
		client, err := dialMQTT(*cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		b.mqttClient = client
		b.publisher = mqtt.NewPublisher(client, cfg.MQTT.DiscoveryPrefix, cfg.MQTT.BaseTopic)
	}

	opts = append([]hub.Option{
		hub.WithRequestTimeout(cfg.RequestTimeout.Std()),
		hub.WithSetupHook(b.attach),
	}, opts...)
	b.hub = hub.New(b.sched, opts...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(b.hub),
	)

	b.server = server.New(&server.Config{
		Listen:         cfg.HTTP.Listen,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, b.hub)

	return b, nil
}

// attach runs for every device after its first refresh
func (b *bridge) attach(entry *hub.Entry) {
	b.server.Broadcaster().Attach(entry)

	if b.publisher != nil {
		if _, err := b.publisher.Attach(entry); err != nil {
			b.logger.Warn("MQTT discovery failed", zap.String("chip_id", entry.ChipID), zap.Error(err))
		}
	}
}

// run serves until ctx is cancelled, then tears everything down
func (b *bridge) run(ctx context.Context) error {
	addr, err := b.server.Listen()
	if err != nil {
		return err
	}

	b.sched.Start(ctx)

	if b.cfg.HTTP.Advertise {
		if ann, err := advertise.Announce(instanceName(), portOf(addr)); err != nil {
			b.logger.Warn("mDNS announcement failed", zap.Error(err))
		} else {
			defer ann.Shutdown()
		}
	}

	for _, d := range b.cfg.Devices {
		b.setups.Add(1)
		go b.setupDevice(ctx, d)
	}

	err = b.server.Start(ctx)
	b.shutdown()
	return err
}

// setupDevice retries a failed setup every poll interval until it succeeds
// or ctx is cancelled.
func (b *bridge) setupDevice(ctx context.Context, d config.DeviceEntry) {
	defer b.setups.Done()

	interval := b.cfg.IntervalFor(d)
	cfg := hub.DeviceConfig{Host: d.Host, Name: d.Name, Interval: interval}

	for attempt := 1; ; attempt++ {
		_, err := b.hub.Setup(ctx, cfg)
		switch {
		case err == nil:
			return
		case errors.Is(err, hub.ErrAlreadyRegistered), errors.Is(err, scheduler.ErrStopped):
			b.logger.Error("Device setup abandoned", zap.String("host", d.Host), zap.Error(err))
			return
		}

		b.logger.Warn("Device not ready, will retry",
			zap.String("host", d.Host),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", interval),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (b *bridge) shutdown() {
	b.setups.Wait()
	b.sched.Stop()

	if b.publisher != nil {
		b.publisher.Close()
		for _, e := range b.hub.List() {
			if err := b.publisher.Offline(e.ChipID); err != nil {
				b.logger.Warn("Failed to mark device offline", zap.String("chip_id", e.ChipID), zap.Error(err))
			}
		}
		b.mqttClient.Disconnect(250)
	}

	b.hub.Close()
	b.logger.Info("Bridge stopped")
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return config.DefaultClientID
	}
	return config.DefaultClientID + "-" + host
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
