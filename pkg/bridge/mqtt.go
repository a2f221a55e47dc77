package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"isg-light-terminal/pkg/core"
	"isg-light-terminal/pkg/isg"
)

// MQTTConfig configures the optional broker connection. Topic is the base
// topic; state is published retained to <topic>/state and commands are
// accepted on <topic>/set.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// Publisher mirrors the light over MQTT.
type Publisher struct {
	mqtt   mqtt.Client
	topic  string
	client *isg.Client
}

func NewPublisher(cfg MQTTConfig, client *isg.Client) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker address is required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "isg/light"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "isg-light-terminal"
	}

	p := &Publisher{
		topic:  topic,
		client: client,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onDisconnect)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	p.mqtt = mqtt.NewClient(opts)
	if token := p.mqtt.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return p, nil
}

func (p *Publisher) Stop() {
	if p.mqtt != nil {
		p.mqtt.Disconnect(250)
	}
}

// PublishState publishes the commanded state, retained so late subscribers
// see the current value.
func (p *Publisher) PublishState(on bool) {
	payload := "off"
	if on {
		payload = "on"
	}
	if token := p.mqtt.Publish(p.topic+"/state", 1, true, payload); token.Wait() && token.Error() != nil {
		core.Logger.Error().Err(token.Error()).Msg("Failed to publish light state")
	}
}

func (p *Publisher) onConnect(client mqtt.Client) {
	setTopic := p.topic + "/set"
	core.Logger.Debug().Str("topic", setTopic).Msg("Connected to mqtt broker, subscribing")

	if token := client.Subscribe(setTopic, 1, p.consume); token.Wait() && token.Error() != nil {
		core.Logger.Error().Err(token.Error()).Msg("Failed to subscribe to command topic")
		return
	}

	p.PublishState(p.client.On())
}

func (p *Publisher) onDisconnect(client mqtt.Client, err error) {
	core.Logger.Warn().Err(err).Msg("Lost connection to mqtt broker")
}

func (p *Publisher) consume(client mqtt.Client, msg mqtt.Message) {
	on, err := parseOnOff(string(msg.Payload()))
	if err != nil {
		core.Logger.Warn().Str("payload", string(msg.Payload())).Msg("Ignoring unrecognized command payload")
		return
	}

	if err := p.client.SetOn(context.Background(), on); err != nil {
		core.Logger.Error().Err(err).Bool("on", on).Msg("Light command from mqtt failed")
	}
	// Publish the commanded state either way; the cache is optimistic.
	p.PublishState(p.client.On())
}

func parseOnOff(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized on/off payload %q", payload)
}
