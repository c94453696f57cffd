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

// Package transfer implements the deterministic state-transition engine of a
// rill node. The engine consumes discrete state changes (chain events, user
// actions, received messages) and produces a new node state plus the side
// effects the surrounding services must perform.
//
// The engine contains no clock reads, no randomness and no I/O. Running the
// same ordered sequence of state changes against the same initial state on
// two nodes yields identical states and identical event sequences.
package transfer

import (
	"encoding/binary"
	"errors"
	"math/rand"

	"github.com/rillnet/rill/common"
)

// StateChange is a tagged value representing one external observation fed
// into the state machine. The set of variants is closed, the reducer treats
// an unknown variant as a programming error.
type StateChange interface{}

// Event is a tagged value produced by the state machine, representing a side
// effect the driver must perform. Events are opaque to the reducer except
// for SendMessageEvent.
type Event interface{}

// SendMessageEvent is implemented by events carrying a protocol message for
// a peer. The reducer sorts these into per-recipient queues so the driver
// can retry delivery until the peer acknowledges.
type SendMessageEvent interface {
	Recipient() common.Address
	QueueName() string
}

// TransitionResult is the uniform output of every state machine in the
// hierarchy. A nil NewState signals terminal completion, the caller must
// remove the owning index entry. Events preserve the order in which the
// machine emitted them.
type TransitionResult struct {
	NewState interface{}
	Events   []Event
}

// ChannelMachine is the state machine of one bilateral payment channel.
type ChannelMachine interface {
	StateTransition(channelState *ChannelState, stateChange StateChange, prg *PRG, blockNumber int64) TransitionResult

	// EventsForClose returns the events closing the channel without
	// mutating its state.
	EventsForClose(channelState *ChannelState, blockNumber int64) []Event
}

// TokenNetworkMachine is the state machine of one deployed token network.
type TokenNetworkMachine interface {
	StateTransition(tokenNetworkState *TokenNetworkState, stateChange StateChange, prg *PRG, blockNumber int64) TransitionResult

	// SubdispatchToChannelByID routes the state change to the single channel
	// it names inside the token network.
	SubdispatchToChannelByID(tokenNetworkState *TokenNetworkState, stateChange StateChange, prg *PRG, blockNumber int64) TransitionResult
}

// PaymentMachine drives an initiator-manager or mediator payment task. The
// context is the channel index of the owning token network. A nil taskState
// starts a fresh task.
type PaymentMachine interface {
	StateTransition(taskState interface{}, stateChange StateChange, channelIDsToChannels map[common.Hash]*ChannelState, prg *PRG, blockNumber int64) TransitionResult
}

// TargetMachine drives a target payment task. The context is the single
// channel the locked transfer arrived on.
type TargetMachine interface {
	StateTransition(taskState interface{}, stateChange StateChange, channelState *ChannelState, prg *PRG, blockNumber int64) TransitionResult
}

// PRG is the deterministic pseudo random generator threaded through the
// state machine. It lives on the node state and is advanced only by the
// nested machines receiving it. The draw counter makes the generator
// snapshot-restorable: decoding replays the recorded number of draws
// against a generator reseeded with the original seed.
type PRG struct {
	seed  int64
	draws uint64
	rnd   *rand.Rand
}

// NewPRG creates a PRG from an explicit seed.
func NewPRG(seed int64) *PRG {
	return &PRG{seed: seed, rnd: rand.New(rand.NewSource(seed))}
}

// Uint64 draws the next value.
func (p *PRG) Uint64() uint64 {
	p.draws++
	return p.rnd.Uint64()
}

// Intn draws a value in [0, n). It consumes exactly one source value, so
// the draw counter stays exact. It panics if n <= 0.
func (p *PRG) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	return int(p.Uint64() % uint64(n))
}

// GobEncode implements gob.GobEncoder. Only seed and draw counter are
// persisted.
func (p *PRG) GobEncode() ([]byte, error) {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], uint64(p.seed))
	binary.BigEndian.PutUint64(buf[8:], p.draws)
	return buf, nil
}

// GobDecode implements gob.GobDecoder.
func (p *PRG) GobDecode(buf []byte) error {
	if len(buf) != 16 {
		return errors.New("invalid PRG encoding")
	}
	seed := int64(binary.BigEndian.Uint64(buf[:8]))
	draws := binary.BigEndian.Uint64(buf[8:])

	p.seed = seed
	p.draws = 0
	p.rnd = rand.New(rand.NewSource(seed))
	for i := uint64(0); i < draws; i++ {
		p.Uint64()
	}
	return nil
}
