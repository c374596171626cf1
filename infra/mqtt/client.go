// Package mqtt connects the engine to the charger over an MQTT broker:
// charger readings and spot price samples flow in, completed sessions flow
// back out.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	AuthMethod string `json:"auth_method"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`

	// ReadingTopic carries charger readings, SpotTopic spot price samples,
	// SessionTopic completed sessions published by this service.
	ReadingTopic string `json:"reading_topic"`
	SpotTopic    string `json:"spot_topic"`
	SessionTopic string `json:"session_topic"`
	QoS          byte   `json:"qos"`

	LWTTopic   string `json:"lwt_topic"`
	LWTPayload string `json:"lwt_payload"`
	LWTQoS     byte   `json:"lwt_qos"`
	LWTRetain  bool   `json:"lwt_retain"`

	TLSConfig *tls.Config `json:"-"`
}

// SetDefaults fills topic names from the charger id.
func (c *Config) SetDefaults(chargerID string) {
	if c.ClientID == "" {
		c.ClientID = "chargetrack-" + chargerID
	}
	if c.ReadingTopic == "" {
		c.ReadingTopic = fmt.Sprintf("chargetrack/%s/reading", chargerID)
	}
	if c.SpotTopic == "" {
		c.SpotTopic = "chargetrack/spot"
	}
	if c.SessionTopic == "" {
		c.SessionTopic = fmt.Sprintf("chargetrack/%s/session", chargerID)
	}
}

// Validate checks mandatory connection fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client owns the broker connection for one charger. Inbound messages are
// decoded and fanned into buffered channels; a full buffer drops the message
// rather than stalling the broker callback.
type Client struct {
	cli      pahoClient
	cfg      Config
	log      logger.Logger
	readings chan model.Reading
	spots    chan model.SpotSample
}

// NewClient connects to the broker and subscribes to the reading and spot
// topics.
func NewClient(cfg Config) (*Client, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	c := &Client{
		cfg:      cfg,
		log:      log,
		readings: make(chan model.Reading, 64),
		spots:    make(chan model.SpotSample, 16),
	}

	opts.OnConnect = func(cli paho.Client) {
		log.Infof("MQTT connected")
		if token := cli.Subscribe(cfg.ReadingTopic, cfg.QoS, c.onReading); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.ReadingTopic, token.Error())
		}
		if cfg.SpotTopic != "" {
			if token := cli.Subscribe(cfg.SpotTopic, cfg.QoS, c.onSpot); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe %s: %v", cfg.SpotTopic, token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = cli
	return c, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// Readings returns the inbound charger reading stream.
func (c *Client) Readings() <-chan model.Reading { return c.readings }

// Spots returns the inbound spot price stream.
func (c *Client) Spots() <-chan model.SpotSample { return c.spots }

func (c *Client) onReading(_ paho.Client, msg paho.Message) {
	r, err := DecodeReading(msg.Payload())
	if err != nil {
		c.log.Errorf("failed to decode reading: %v", err)
		return
	}
	select {
	case c.readings <- r:
	default:
		c.log.Warnf("reading buffer full, dropping message")
	}
}

func (c *Client) onSpot(_ paho.Client, msg paho.Message) {
	s, err := DecodeSpotSample(msg.Payload())
	if err != nil {
		c.log.Errorf("failed to decode spot sample: %v", err)
		return
	}
	select {
	case c.spots <- s:
	default:
		c.log.Warnf("spot buffer full, dropping message")
	}
}

// DecodeReading parses a charger reading payload. A missing timestamp is
// stamped with the arrival time.
func DecodeReading(payload []byte) (model.Reading, error) {
	var r model.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return model.Reading{}, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return r, nil
}

// DecodeSpotSample parses a spot price payload.
func DecodeSpotSample(payload []byte) (model.SpotSample, error) {
	var s model.SpotSample
	if err := json.Unmarshal(payload, &s); err != nil {
		return model.SpotSample{}, err
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	return s, nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
