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
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
)

func TestGetDefaultKafkaConfig(t *testing.T) {
	config := GetDefaultKafkaConfig()

	assert.Equal(t, DefaultTopic, config.Topic)
	assert.Equal(t, int32(DefaultPartitions), config.Partitions)
	assert.Equal(t, int16(DefaultReplicas), config.Replicas)
	assert.Equal(t, sarama.WaitForLocal, config.SaramaConfig.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionSnappy, config.SaramaConfig.Producer.Compression)
	assert.True(t, config.SaramaConfig.Producer.Return.Errors)
	assert.Empty(t, config.Brokers)
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	config := GetDefaultKafkaConfig()
	_, err := NewPublisher(config)
	assert.Error(t, err)
}
