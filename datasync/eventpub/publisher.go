// Copyright 2018 The rill Authors
// This file is part of the rill library.
//
// The rill library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The rill library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the rill library. If not, see <http://www.gnu.org/licenses/>.

// Package eventpub streams the events produced by the state machine to a
// kafka topic for off-node indexing.
package eventpub

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/rillnet/rill/log"
	"github.com/rillnet/rill/transfer"
)

var logger = log.NewModuleLogger(log.EventPub)

// Publisher forwards state-machine events to kafka. Publishing is
// fire-and-forget, failed deliveries are logged and dropped, the durable
// record of the node is the state-change log, not the event stream.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	closeCh  chan struct{}
}

// envelope is the JSON payload written to the topic.
type envelope struct {
	StateChangeNumber uint64      `json:"stateChangeNumber"`
	EventType         string      `json:"eventType"`
	Event             interface{} `json:"event"`
}

// NewPublisher connects the async producer to the configured brokers.
func NewPublisher(config *KafkaConfig) (*Publisher, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("eventpub: no brokers configured")
	}

	producer, err := sarama.NewAsyncProducer(config.Brokers, config.SaramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start the sarama producer")
	}

	p := &Publisher{
		producer: producer,
		topic:    config.Topic,
		closeCh:  make(chan struct{}),
	}
	go p.drainErrors()

	logger.Info("Event publisher started", "brokers", config.Brokers, "topic", config.Topic)
	return p, nil
}

func (p *Publisher) drainErrors() {
	for {
		select {
		case <-p.closeCh:
			return
		case err, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			logger.Error("Failed to publish an event", "err", err)
		}
	}
}

// Publish enqueues the events produced by one state transition.
func (p *Publisher) Publish(stateChangeNumber uint64, events []transfer.Event) error {
	for _, event := range events {
		data, err := json.Marshal(&envelope{
			StateChangeNumber: stateChangeNumber,
			EventType:         fmt.Sprintf("%T", event),
			Event:             event,
		})
		if err != nil {
			return errors.Wrap(err, "failed to encode an event")
		}

		p.producer.Input() <- &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(p.topic),
			Value: sarama.ByteEncoder(data),
		}
	}
	return nil
}

// Close flushes and stops the producer.
func (p *Publisher) Close() {
	close(p.closeCh)
	if err := p.producer.Close(); err != nil {
		logger.Error("Failed to close the event publisher", "err", err)
	}
}
