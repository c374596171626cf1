package mqtt

import (
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/infra/logger"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	connected bool
	published []struct {
		topic   string
		payload []byte
	}
}

func (f *fakeClient) IsConnected() bool { return f.connected }
func (f *fakeClient) Connect() paho.Token {
	f.connected = true
	return &fakeToken{}
}
func (f *fakeClient) Disconnect(uint) { f.connected = false }
func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.published = append(f.published, struct {
		topic   string
		payload []byte
	}{topic, payload.([]byte)})
	return &fakeToken{}
}
func (f *fakeClient) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}

type fakeMessage struct{ payload []byte }

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "chargetrack/garage/reading" }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestDecodeReading(t *testing.T) {
	payload := []byte(`{"status":"charging","energy_kwh":2.5,"power_w":7400,"rfid":7,"total_energy_kwh":512.3,"ts":"2026-02-22T08:00:00Z"}`)
	r, err := DecodeReading(payload)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCharging, r.Status)
	assert.Equal(t, 2.5, r.SessionEnergyKWh)
	assert.Equal(t, 7400.0, r.PowerW)
	require.NotNil(t, r.RFID)
	assert.Equal(t, int64(7), *r.RFID)
	require.NotNil(t, r.TotalEnergyKWh)
	assert.Equal(t, 512.3, *r.TotalEnergyKWh)
	assert.Equal(t, time.Date(2026, 2, 22, 8, 0, 0, 0, time.UTC), r.Timestamp)
}

func TestDecodeReadingOptionalFields(t *testing.T) {
	r, err := DecodeReading([]byte(`{"status":"disconnected","energy_kwh":0,"power_w":0}`))
	require.NoError(t, err)
	assert.Nil(t, r.RFID)
	assert.Nil(t, r.TotalEnergyKWh)
	assert.False(t, r.Timestamp.IsZero(), "missing timestamp must be stamped on arrival")
}

func TestDecodeReadingRejectsGarbage(t *testing.T) {
	_, err := DecodeReading([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeSpotSample(t *testing.T) {
	s, err := DecodeSpotSample([]byte(`{"price_kwh":1.84,"ts":"2026-02-22T08:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, 1.84, s.PriceKWh)
}

func TestClientFansReadingsIntoChannel(t *testing.T) {
	c := &Client{
		cfg:      Config{ReadingTopic: "chargetrack/garage/reading"},
		log:      logger.NopLogger{},
		readings: make(chan model.Reading, 4),
		spots:    make(chan model.SpotSample, 4),
	}

	c.onReading(nil, &fakeMessage{payload: []byte(`{"status":"charging","energy_kwh":1.0,"power_w":3700}`)})
	select {
	case r := <-c.Readings():
		assert.Equal(t, model.StatusCharging, r.Status)
	default:
		t.Fatalf("reading not delivered")
	}

	// Garbage must be dropped without blocking the callback.
	c.onReading(nil, &fakeMessage{payload: []byte(`garbage`)})
	select {
	case <-c.Readings():
		t.Fatalf("garbage must not be delivered")
	default:
	}
}

func TestPublishSession(t *testing.T) {
	fake := &fakeClient{connected: true}
	c := &Client{
		cli: fake,
		cfg: Config{SessionTopic: "chargetrack/garage/session", QoS: 1},
		log: logger.NopLogger{},
	}

	sess := model.NewSession("garage", "Garage Charger", time.Now().UTC())
	sess.EnergyKWh = 4.2
	require.NoError(t, c.PublishSession(sess))
	require.Len(t, fake.published, 1)
	assert.Equal(t, "chargetrack/garage/session", fake.published[0].topic)
	assert.Contains(t, string(fake.published[0].payload), sess.ID)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults("garage")
	assert.Equal(t, "chargetrack/garage/reading", cfg.ReadingTopic)
	assert.Equal(t, "chargetrack/garage/session", cfg.SessionTopic)
	assert.Equal(t, "chargetrack-garage", cfg.ClientID)
	assert.Error(t, cfg.Validate(), "broker must be required")
}
