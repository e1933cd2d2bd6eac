package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/config"
	"github.com/muurk/esp32aq/internal/hub"
	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/sensor"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	publishTimeout = 5 * time.Second
)

// Client is the part of paho.Client the publisher uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher mirrors hub devices to Home Assistant through MQTT discovery.
//
// For every entity it publishes a retained discovery config; after every
// refresh it publishes the device availability and, when data exists, a JSON
// state document all five entities read their value from.
type Publisher struct {
	client          Client
	discoveryPrefix string
	baseTopic       string
	logger          *zap.Logger

	// queued counts state publishes requested but not yet finished
	queued sync.WaitGroup

	mu      sync.Mutex
	workers map[*stateWorker]struct{}
	running sync.WaitGroup
}

// stateWorker publishes one device's state in refresh order. pending holds at
// most one request; PublishState reads the coordinator when it runs, so a
// coalesced request still publishes the newest state.
type stateWorker struct {
	mu      sync.Mutex
	stopped bool
	pending chan struct{}
	done    chan struct{}
}

func (w *stateWorker) request(queued *sync.WaitGroup) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	queued.Add(1)
	select {
	case w.pending <- struct{}{}:
	default:
		queued.Done()
	}
}

func (w *stateWorker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.done)
	}
}

// NewPublisher creates a publisher writing under the given topic roots
func NewPublisher(client Client, discoveryPrefix, baseTopic string) *Publisher {
	return &Publisher{
		client:          client,
		discoveryPrefix: discoveryPrefix,
		baseTopic:       baseTopic,
		logger:          logging.Named("mqtt"),
		workers:         make(map[*stateWorker]struct{}),
	}
}

// discoveryConfig is a Home Assistant MQTT sensor discovery payload
type discoveryConfig struct {
	Name                string             `json:"name"`
	UniqueID            string             `json:"unique_id"`
	StateTopic          string             `json:"state_topic"`
	ValueTemplate       string             `json:"value_template"`
	JSONAttributesTopic string             `json:"json_attributes_topic"`
	JSONAttributesTpl   string             `json:"json_attributes_template"`
	AvailabilityTopic   string             `json:"availability_topic"`
	UnitOfMeasurement   string             `json:"unit_of_measurement"`
	DeviceClass         string             `json:"device_class"`
	StateClass          string             `json:"state_class"`
	Icon                string             `json:"icon"`
	Device              sensor.DeviceBlock `json:"device"`
}

// StateTopic returns the JSON state topic of a device
func (p *Publisher) StateTopic(chipID string) string {
	return fmt.Sprintf("%s/%s/state", p.baseTopic, chipID)
}

// AvailabilityTopic returns the availability topic of a device
func (p *Publisher) AvailabilityTopic(chipID string) string {
	return fmt.Sprintf("%s/%s/availability", p.baseTopic, chipID)
}

// DiscoveryTopic returns the discovery config topic of one entity
func (p *Publisher) DiscoveryTopic(chipID, key string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.discoveryPrefix, chipID, key)
}

// Attach publishes discovery configs and the current state of entry, then
// republishes its state after every refresh. The returned function detaches.
func (p *Publisher) Attach(entry *hub.Entry) (detach func(), err error) {
	if err := p.PublishDiscovery(entry); err != nil {
		return nil, err
	}
	if err := p.PublishState(entry); err != nil {
		return nil, err
	}

	w := &stateWorker{
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.mu.Lock()
	p.workers[w] = struct{}{}
	p.mu.Unlock()

	p.running.Add(1)
	go p.runWorker(entry, w)

	remove := entry.Coordinator.AddListener(func() { w.request(&p.queued) })
	return func() {
		remove()
		w.stop()
		p.mu.Lock()
		delete(p.workers, w)
		p.mu.Unlock()
	}, nil
}

func (p *Publisher) runWorker(entry *hub.Entry, w *stateWorker) {
	defer p.running.Done()

	publish := func() {
		defer p.queued.Done()
		if err := p.PublishState(entry); err != nil {
			p.logger.Warn("Publishing state failed", zap.String("chip_id", entry.ChipID), zap.Error(err))
		}
	}

	for {
		select {
		case <-w.pending:
			publish()
		case <-w.done:
			// no request can arrive once stopped
			select {
			case <-w.pending:
				publish()
			default:
			}
			return
		}
	}
}

// PublishDiscovery publishes the retained discovery config of every entity
func (p *Publisher) PublishDiscovery(entry *hub.Entry) error {
	for _, e := range sensor.NewEntities(entry.Info, entry.Coordinator.Host(), entry.Coordinator) {
		d := e.Description()
		cfg := discoveryConfig{
			Name:                e.Name(),
			UniqueID:            e.UniqueID(),
			StateTopic:          p.StateTopic(entry.ChipID),
			ValueTemplate:       fmt.Sprintf("{{ value_json.%s }}", d.Key),
			JSONAttributesTopic: p.StateTopic(entry.ChipID),
			JSONAttributesTpl:   fmt.Sprintf(`{"%s": {{ value_json.%s }}}`, d.Attribute, d.Key),
			AvailabilityTopic:   p.AvailabilityTopic(entry.ChipID),
			UnitOfMeasurement:   d.Unit,
			DeviceClass:         d.DeviceClass,
			StateClass:          d.StateClass,
			Icon:                d.Icon,
			Device:              e.Device(),
		}

		payload, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode discovery for %s: %w", e.UniqueID(), err)
		}
		if err := p.publish(p.DiscoveryTopic(entry.ChipID, d.Key), true, payload); err != nil {
			return err
		}
	}

	p.logger.Debug("Published discovery", zap.String("chip_id", entry.ChipID))
	return nil
}

// PublishState publishes availability and, when a snapshot exists, the state
// document. A failed refresh marks the device offline and leaves the last
// retained state in place.
func (p *Publisher) PublishState(entry *hub.Entry) error {
	coord := entry.Coordinator
	available := coord.Available()

	if snap, err := coord.Latest(); err == nil && available {
		state := make(map[string]interface{}, len(sensor.Descriptions)+1)
		for _, d := range sensor.Descriptions {
			state[d.Key] = d.Value(snap.Readings)
		}
		state["updated_at"] = snap.UpdatedAt.UTC().Format(time.RFC3339)

		payload, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode state for %s: %w", entry.ChipID, err)
		}
		if err := p.publish(p.StateTopic(entry.ChipID), true, payload); err != nil {
			return err
		}
	}

	availability := payloadOffline
	if available {
		availability = payloadOnline
	}
	return p.publish(p.AvailabilityTopic(entry.ChipID), true, []byte(availability))
}

// Offline marks a device offline, used on shutdown
func (p *Publisher) Offline(chipID string) error {
	return p.publish(p.AvailabilityTopic(chipID), true, []byte(payloadOffline))
}

// Flush waits until every state publish requested by a refresh has finished
func (p *Publisher) Flush() {
	p.queued.Wait()
}

// Close stops every attached device's state publishing after its queued
// publish, if any, has gone out.
func (p *Publisher) Close() {
	p.mu.Lock()
	for w := range p.workers {
		w.stop()
		delete(p.workers, w)
	}
	p.mu.Unlock()
	p.running.Wait()
}

func (p *Publisher) publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Dial connects to the broker described by cfg. The connection reconnects
// automatically; the bridge status topic "<base_topic>/bridge" carries a
// retained online/offline flag backed by the last will.
func Dial(cfg config.MQTTConfig) (paho.Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address cannot be empty")
	}
	log := logging.Named("mqtt")
	statusTopic := cfg.BaseTopic + "/bridge"

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWill(statusTopic, payloadOffline, 1, true)

	opts.OnConnect = func(c paho.Client) {
		log.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker), zap.String("client_id", cfg.ClientID))
		c.Publish(statusTopic, 1, true, payloadOnline)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		log.Info("Reconnecting to MQTT broker")
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection to MQTT broker timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}
	return client, nil
}
