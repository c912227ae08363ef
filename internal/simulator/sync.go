package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fleetdata/trucksim/internal/models"
	"github.com/lucsky/cuid"
	log "github.com/sirupsen/logrus"
)

// TickEvent is the payload pushed to the backend after each local tick.
// The receiving side must tolerate out-of-order and dropped events, keyed
// by shipment id and timestamp.
type TickEvent struct {
	EventID         string  `json:"event_id"`
	ShipmentID      string  `json:"shipment_id"`
	TimeDelta       float64 `json:"time_delta"` // seconds covered by this tick
	SpeedMultiplier float64 `json:"speed_multiplier"`
	Timestamp       int64   `json:"timestamp"` // unix millis
}

// SyncBackend delivers one serialized tick event. Implementations decide
// the destination (endpoint, topic) from the event itself.
type SyncBackend interface {
	WriteTick(event TickEvent, payload []byte) error
}

// SyncDispatcher decouples the tick loop from network latency: Enqueue
// never blocks, a single worker drains the bounded queue, and delivery
// failures are logged without touching local simulation state. When the
// queue is full the newest event is dropped and counted.
type SyncDispatcher struct {
	backend SyncBackend
	queue   chan TickEvent
	done    chan struct{}
	logger  *log.Logger

	dropped  atomic.Int64
	failures atomic.Int64

	closeOnce sync.Once
}

func NewSyncDispatcher(backend SyncBackend, queueSize int, logger *log.Logger) *SyncDispatcher {
	if queueSize <= 0 {
		queueSize = 512
	}
	d := &SyncDispatcher{
		backend: backend,
		queue:   make(chan TickEvent, queueSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go d.run()
	return d
}

// Enqueue hands the event to the worker without blocking. It reports
// whether the event was accepted.
func (d *SyncDispatcher) Enqueue(event TickEvent) bool {
	if event.EventID == "" {
		event.EventID = cuid.New()
	}
	select {
	case d.queue <- event:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

func (d *SyncDispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		payload, err := json.Marshal(event)
		if err != nil {
			d.failures.Add(1)
			d.logger.WithError(err).Error("failed to marshal tick event")
			continue
		}
		if err := d.backend.WriteTick(event, payload); err != nil {
			d.failures.Add(1)
			d.logger.WithFields(log.Fields{
				"shipment_id": event.ShipmentID,
				"event_id":    event.EventID,
			}).WithError(err).Warn("tick sync delivery failed")
		}
	}
}

// Dropped returns how many events were shed due to back-pressure.
func (d *SyncDispatcher) Dropped() int64 { return d.dropped.Load() }

// Failures returns how many deliveries the backend rejected.
func (d *SyncDispatcher) Failures() int64 { return d.failures.Load() }

// Close drains the queue, stops the worker and closes the backend.
func (d *SyncDispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.queue)
		<-d.done
		if closer, ok := d.backend.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

// ConsoleBackend prints tick events to stdout, used by demos.
type ConsoleBackend struct{}

func (c *ConsoleBackend) WriteTick(event TickEvent, payload []byte) error {
	_, err := fmt.Printf("[tick:%s] %s\n", event.ShipmentID, payload)
	return err
}

// HTTPBackend POSTs tick events to the backend tick endpoint. Responses
// are discarded; the caller has no response contract.
type HTTPBackend struct {
	endpoint string
	client   *http.Client
}

func NewHTTPBackend(endpoint string) *HTTPBackend {
	return &HTTPBackend{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPBackend) WriteTick(_ TickEvent, payload []byte) error {
	resp, err := h.client.Post(h.endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("tick endpoint status %d", resp.StatusCode)
	}
	return nil
}

// KafkaBackend publishes tick events to a Kafka topic, keyed by shipment
// id so consumers can partition per vehicle.
type KafkaBackend struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaBackend(config *models.Config) (*KafkaBackend, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true // Must be true for SyncProducer
	saramaConfig.Net.DialTimeout = 30 * time.Second
	saramaConfig.Net.ReadTimeout = 30 * time.Second
	saramaConfig.Net.WriteTimeout = 30 * time.Second

	brokerList := strings.Split(config.KafkaBrokerList, ",")
	producer, err := sarama.NewSyncProducer(brokerList, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}

	return &KafkaBackend{producer: producer, topic: config.KafkaTopic}, nil
}

func (k *KafkaBackend) WriteTick(event TickEvent, payload []byte) error {
	if k.producer == nil {
		return fmt.Errorf("kafka producer is not initialized")
	}
	_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.ShipmentID),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (k *KafkaBackend) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

// MQTTBackend publishes each vehicle's ticks on its own subtopic.
type MQTTBackend struct {
	client      mqtt.Client
	topicPrefix string
}

func NewMQTTBackend(config *models.Config) (*MQTTBackend, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(config.MQTTBroker).
		SetClientID("trucksim-" + cuid.Slug()).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect failed: %v", token.Error())
	}

	return &MQTTBackend{client: client, topicPrefix: config.MQTTTopicPrefix}, nil
}

func (m *MQTTBackend) WriteTick(event TickEvent, payload []byte) error {
	topic := m.topicPrefix + "/" + event.ShipmentID
	token := m.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		return fmt.Errorf("mqtt publish failed: %v", token.Error())
	}
	return nil
}

func (m *MQTTBackend) Close() error {
	m.client.Disconnect(250)
	return nil
}

// NewSyncBackend picks the backend the config names. "none" yields nil, in
// which case the engine skips sync entirely.
func NewSyncBackend(config *models.Config) (SyncBackend, error) {
	switch config.SyncBackend {
	case "", "none":
		return nil, nil
	case "console":
		return &ConsoleBackend{}, nil
	case "http":
		if config.SyncEndpoint == "" {
			return nil, fmt.Errorf("sync_backend http requires sync_endpoint")
		}
		return NewHTTPBackend(config.SyncEndpoint), nil
	case "kafka":
		return NewKafkaBackend(config)
	case "mqtt":
		return NewMQTTBackend(config)
	default:
		return nil, fmt.Errorf("unknown sync backend %q", config.SyncBackend)
	}
}
