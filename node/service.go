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

// Package node runs the state machine behind a single serialized entry
// point and owns its persistence.
package node

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/datasync/eventpub"
	"github.com/rillnet/rill/encoding"
	"github.com/rillnet/rill/log"
	"github.com/rillnet/rill/network"
	"github.com/rillnet/rill/params"
	"github.com/rillnet/rill/storage/database"
	"github.com/rillnet/rill/transfer"
)

var logger = log.NewModuleLogger(log.Node)

var (
	stateChangeCounter = metrics.NewRegisteredCounter("rill/node/statechanges", nil)
	eventCounter       = metrics.NewRegisteredCounter("rill/node/events", nil)
)

// Service drives the state machine. All state changes, whether produced by
// the chain listener, the transport or the user API, are serialized through
// HandleStateChange. The service also persists the state-change log, takes
// periodic snapshots and streams the emitted events to the publisher.
type Service struct {
	config       *Config
	dbm          database.DBManager
	publisher    *eventpub.Publisher // nil when publishing is disabled
	stateMachine *transfer.StateMachine
	routing      network.RoutesProvider

	mu                sync.Mutex
	nodeState         *transfer.NodeState
	stateChangeNumber uint64
}

// NewService wires the service. publisher may be nil.
func NewService(config *Config, dbm database.DBManager, publisher *eventpub.Publisher,
	stateMachine *transfer.StateMachine, routing network.RoutesProvider) *Service {
	return &Service{
		config:       config,
		dbm:          dbm,
		publisher:    publisher,
		stateMachine: stateMachine,
		routing:      routing,
	}
}

// Start restores the node state from the latest snapshot and replays the
// state-change log recorded after it. A node starting for the first time
// initializes an empty aggregate.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodeState, snapshotNumber, err := s.dbm.ReadLatestSnapshot()
	switch {
	case err == nil:
		s.nodeState = nodeState
		s.stateChangeNumber = snapshotNumber
	case errors.Cause(err) == database.ErrKeyNotFound:
		// First start or no snapshot yet, begin from an empty aggregate
		// and replay the whole log.
		snapshotNumber = 0
		s.stateChangeNumber = 0
		s.applyLocked(&transfer.ActionInitNode{
			PRG:         transfer.NewPRG(s.config.PRGSeed),
			BlockNumber: 0,
		})
	default:
		return errors.Wrap(err, "failed to read the latest snapshot")
	}

	latest := s.dbm.ReadLatestStateChangeNumber()
	for number := snapshotNumber + 1; number <= latest; number++ {
		stateChange, err := s.dbm.ReadStateChange(number)
		if err != nil {
			return errors.Wrapf(err, "state-change log is broken at %d", number)
		}
		s.applyLocked(stateChange)
		s.stateChangeNumber = number
	}

	logger.Info("Node state restored", "snapshot", snapshotNumber, "replayed", latest-snapshotNumber)
	return nil
}

// Stop flushes the publisher. The databases are closed by the owner of the
// DBManager.
func (s *Service) Stop() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

// applyLocked runs the reducer and adopts the resulting state. The caller
// holds s.mu.
func (s *Service) applyLocked(stateChange transfer.StateChange) transfer.TransitionResult {
	iteration := s.stateMachine.StateTransition(s.nodeState, stateChange)
	s.nodeState = iteration.NewState.(*transfer.NodeState)
	return iteration
}

// HandleStateChange records, applies and publishes one state change. It is
// the only mutation path of the node state.
func (s *Service) HandleStateChange(stateChange transfer.StateChange) ([]transfer.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateChangeNumber++
	number := s.stateChangeNumber
	s.dbm.WriteStateChange(number, stateChange)

	iteration := s.applyLocked(stateChange)

	stateChangeCounter.Inc(1)
	eventCounter.Inc(int64(len(iteration.Events)))

	if number%params.SnapshotStateChangeInterval == 0 {
		s.dbm.WriteSnapshot(number, s.nodeState)
		logger.Debug("Node state snapshot taken", "number", number)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(number, iteration.Events); err != nil {
			logger.Error("Failed to publish events", "number", number, "err", err)
		}
	}

	return iteration.Events, nil
}

// Address implements network.NodeBackend.
func (s *Service) Address() common.Address {
	return s.config.Address
}

// RegistryAddress implements network.NodeBackend.
func (s *Service) RegistryAddress() common.Address {
	return s.config.RegistryAddress
}

// StateFromNode implements network.NodeBackend. The returned aggregate may
// be read between reducer calls but must not be mutated.
func (s *Service) StateFromNode() *transfer.NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeState
}

// GetQueue returns the pending messages for one recipient queue.
func (s *Service) GetQueue(queueID transfer.QueueID) []transfer.SendMessageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transfer.SendMessageEvent(nil), s.nodeState.QueueIDsToQueues[queueID]...)
}

// TargetMediatedTransfer implements network.NodeBackend. The node is the
// final target of the received locked transfer.
func (s *Service) TargetMediatedTransfer(message *encoding.MediatedTransfer) {
	fromTransfer := network.LockedTransferSignedFromMessage(message)
	stateChange := &transfer.ActionInitTarget{
		PaymentNetworkIdentifier: s.config.RegistryAddress,
		FromRoute: transfer.RouteState{
			NodeAddress:       message.Sender,
			ChannelIdentifier: message.ChannelIdentifier,
		},
		Transfer: fromTransfer,
	}
	if _, err := s.HandleStateChange(stateChange); err != nil {
		logger.Error("Failed to init the target task", "err", err)
	}
}

// MediateMediatedTransfer implements network.NodeBackend. The node forwards
// the received locked transfer towards its target.
func (s *Service) MediateMediatedTransfer(message *encoding.MediatedTransfer) {
	fromTransfer := network.LockedTransferSignedFromMessage(message)
	routes := s.routing.GetBestRoutes(
		s.StateFromNode(),
		s.config.RegistryAddress,
		fromTransfer.Token,
		s.config.Address,
		fromTransfer.Target,
		fromTransfer.Lock.Amount,
		message.Sender,
	)
	stateChange := &transfer.ActionInitMediator{
		PaymentNetworkIdentifier: s.config.RegistryAddress,
		Routes:                   routes,
		FromRoute: transfer.RouteState{
			NodeAddress:       message.Sender,
			ChannelIdentifier: message.ChannelIdentifier,
		},
		FromTransfer: fromTransfer,
	}
	if _, err := s.HandleStateChange(stateChange); err != nil {
		logger.Error("Failed to init the mediator task", "err", err)
	}
}
