package sensor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"activity-tracker/internal/analysis"
)

// MQTTConfig holds the broker connection and topics a paired device publishes to
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	FixTopic    string
	MotionTopic string
	QoS         byte
}

// fixMessage is the JSON payload published on the fix topic
type fixMessage struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Time int64   `json:"time"` // epoch ms
}

// motionMessage is the JSON payload published on the motion topic
type motionMessage struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Time int64   `json:"time,omitempty"` // epoch ms, optional
}

// MQTTSource receives fixes and accelerometer samples from a device over MQTT.
// Paho delivers messages for a subscription sequentially, preserving order.
type MQTTSource struct {
	client mqtt.Client
	cfg    MQTTConfig
	logger *slog.Logger
}

// ConnectMQTT dials the broker and returns a source bound to it
func ConnectMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTTSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("activity-tracker-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(true)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, token.Error())
	}

	return NewMQTTSource(client, cfg, logger), nil
}

// NewMQTTSource wraps an already connected client
func NewMQTTSource(client mqtt.Client, cfg MQTTConfig, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSource{client: client, cfg: cfg, logger: logger}
}

// WatchPosition subscribes to the fix topic
func (s *MQTTSource) WatchPosition(opts LocationOptions, fn func(Fix)) (Subscription, error) {
	var last time.Time
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		fix, err := DecodeFix(msg.Payload())
		if err != nil {
			s.logger.Warn("dropping malformed fix", "topic", msg.Topic(), "error", err)
			return
		}
		if !last.IsZero() && fix.Time.Sub(last) < opts.MinInterval {
			return
		}
		last = fix.Time
		fn(fix)
	}
	return s.subscribe(s.cfg.FixTopic, handler)
}

// Watch subscribes to the motion topic. The device controls its own sample rate.
func (s *MQTTSource) Watch(_ time.Duration, fn func(Sample)) (Subscription, error) {
	if s.cfg.MotionTopic == "" {
		return nil, ErrUnavailable
	}
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		sample, err := DecodeSample(msg.Payload())
		if err != nil {
			s.logger.Warn("dropping malformed sample", "topic", msg.Topic(), "error", err)
			return
		}
		fn(sample)
	}
	return s.subscribe(s.cfg.MotionTopic, handler)
}

// Close disconnects from the broker
func (s *MQTTSource) Close() {
	s.client.Disconnect(250)
}

func (s *MQTTSource) subscribe(topic string, handler mqtt.MessageHandler) (Subscription, error) {
	if token := s.client.Subscribe(topic, s.cfg.QoS, handler); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, token.Error())
	}
	return SubscriptionFunc(func() {
		if token := s.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
			s.logger.Warn("mqtt unsubscribe failed", "topic", topic, "error", token.Error())
		}
	}), nil
}

// DecodeFix parses a fix payload
func DecodeFix(payload []byte) (Fix, error) {
	var m fixMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return Fix{}, fmt.Errorf("decoding fix: %w", err)
	}
	if m.Lat < -90 || m.Lat > 90 || m.Lng < -180 || m.Lng > 180 {
		return Fix{}, fmt.Errorf("coordinates out of range: %v,%v", m.Lat, m.Lng)
	}
	if m.Time <= 0 {
		return Fix{}, fmt.Errorf("fix has no timestamp")
	}
	return Fix{
		Point: analysis.GeoPoint{Latitude: m.Lat, Longitude: m.Lng},
		Time:  time.UnixMilli(m.Time),
	}, nil
}

// DecodeSample parses an accelerometer payload
func DecodeSample(payload []byte) (Sample, error) {
	var m motionMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return Sample{}, fmt.Errorf("decoding sample: %w", err)
	}
	s := Sample{Vector3: analysis.Vector3{X: m.X, Y: m.Y, Z: m.Z}}
	if m.Time > 0 {
		s.Time = time.UnixMilli(m.Time)
	}
	return s, nil
}
