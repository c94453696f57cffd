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

package eventpub

import (
	"time"

	"github.com/Shopify/sarama"
)

const (
	DefaultReplicas   = 1
	DefaultPartitions = 1
	DefaultTopic      = "rill-events"
)

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	SaramaConfig *sarama.Config // kafka client configurations.
	Brokers      []string       // Brokers is a list of broker URLs.
	Topic        string         // Topic the events are published to.
	Partitions   int32          // Partitions is the number of partitions of the topic.
	Replicas     int16          // Replicas is the replication factor of the topic.
}

// GetDefaultKafkaConfig returns the config used unless the operator
// overrides it.
func GetDefaultKafkaConfig() *KafkaConfig {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond

	return &KafkaConfig{
		SaramaConfig: config,
		Topic:        DefaultTopic,
		Partitions:   DefaultPartitions,
		Replicas:     DefaultReplicas,
	}
}
