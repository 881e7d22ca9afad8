// Copyright (c) 2026 Scott McLesly
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package telemetry publishes sensor readings and update-session
// transitions over MQTT. Publishing is best effort: the tank must keep
// running with the broker unreachable, so messages are dropped rather
// than queued when the connection is down.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/session/state"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/config"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord/sensorstate"
)

const publishTimeout = 5 * time.Second

// Publisher maintains the broker connection. A Publisher built from a
// config with no broker is a no-op; callers need no special casing.
type Publisher struct {
	cfg    config.MQTT
	cm     *autopaho.ConnectionManager
	cancel context.CancelFunc
}

func NewPublisher(cfg config.MQTT) *Publisher {
	return &Publisher{cfg: cfg}
}

// Start opens the managed broker connection. Reconnection after that is
// autopaho's business.
func (p *Publisher) Start() error {
	if p.cfg.Broker == "" {
		return nil
	}
	serverURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("cannot parse mqtt broker URL: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:       []*url.URL{serverURL},
		KeepAlive:        60,
		ReconnectBackoff: autopaho.NewConstantBackoff(5 * time.Second),
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			logger.Noticef("Connected to MQTT broker %s", p.cfg.Broker)
		},
		OnConnectError: func(err error) {
			logger.Debugf("mqtt connect error: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
			Session:  state.NewInMemory(),
			OnClientError: func(err error) {
				logger.Debugf("mqtt client error: %v", err)
			},
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("cannot set up mqtt connection: %w", err)
	}
	p.cm = cm
	return nil
}

// PublishReading sends one sensor sample to <prefix>/sensor/<name>.
func (p *Publisher) PublishReading(r sensorstate.Reading) {
	p.publish("sensor/"+r.Sensor, r)
}

// PublishUpdateState announces an update-session state on
// <prefix>/ota/state.
func (p *Publisher) PublishUpdateState(state string) {
	p.publish("ota/state", struct {
		State string    `json:"state"`
		Time  time.Time `json:"time"`
	}{state, time.Now()})
}

func (p *Publisher) publish(subtopic string, payload any) {
	if p.cm == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Panicf("internal error: cannot marshal telemetry payload: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.cm.AwaitConnection(ctx); err != nil {
		// Broker down; the reading is stale by the time it reconnects.
		return
	}
	topic := p.cfg.TopicPrefix + "/" + subtopic
	_, err = p.cm.Publish(ctx, &paho.Publish{
		QoS:     byte(p.cfg.QoS),
		Topic:   topic,
		Payload: data,
	})
	if err != nil {
		logger.Debugf("cannot publish to %s: %v", topic, err)
	}
}

// Stop closes the broker connection.
func (p *Publisher) Stop() {
	if p.cm != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		_ = p.cm.Disconnect(ctx)
	}
	if p.cancel != nil {
		p.cancel()
	}
}
