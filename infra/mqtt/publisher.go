package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/bessopt/core/model"
	coremon "github.com/kilianp07/bessopt/core/monitoring"
	"github.com/kilianp07/bessopt/infra/logger"
)

// SchedulePublisher sends optimized schedules to a downstream BESS
// controller. The full schedule is retained on <prefix>/schedule and each
// row is published on <prefix>/schedule/<index>.
type SchedulePublisher struct {
	cli        pahoClient
	prefix     string
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// rowMessage is the payload of one per-timestep message.
type rowMessage struct {
	RunID string    `json:"run_id"`
	Index int       `json:"index"`
	Row   model.Row `json:"row"`
}

// NewSchedulePublisher connects to the broker.
func NewSchedulePublisher(cfg Config) (*SchedulePublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return &SchedulePublisher{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}, nil
}

// ScheduleTopic is the retained topic carrying the whole schedule.
func (p *SchedulePublisher) ScheduleTopic() string { return p.prefix + "/schedule" }

// RowTopic is the topic of the i-th timestep.
func (p *SchedulePublisher) RowTopic(i int) string { return fmt.Sprintf("%s/schedule/%d", p.prefix, i) }

// Publish sends the schedule and its rows. It stops at the first message
// that cannot be delivered after retries.
func (p *SchedulePublisher) Publish(ctx context.Context, sched *model.Schedule) error {
	if sched == nil {
		return fmt.Errorf("nil schedule")
	}
	payload, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	if err := p.publish(ctx, p.ScheduleTopic(), p.qosFor("schedule"), true, payload); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "run_id": sched.RunID})
		return err
	}
	for i, row := range sched.Rows {
		b, err := json.Marshal(rowMessage{RunID: sched.RunID, Index: i, Row: row})
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if err := p.publish(ctx, p.RowTopic(i), p.qosFor("row"), false, b); err != nil {
			coremon.CaptureException(err, map[string]string{"module": "mqtt", "run_id": sched.RunID})
			return err
		}
	}
	p.log.Infof("published schedule %s (%d rows) to %s", sched.RunID, len(sched.Rows), p.ScheduleTopic())
	return nil
}

func (p *SchedulePublisher) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *SchedulePublisher) publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff * time.Duration(1<<attempt)):
			}
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close gracefully closes the MQTT connection.
func (p *SchedulePublisher) Close() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
