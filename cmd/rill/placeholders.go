// Copyright 2018 The rill Authors
// This file is part of rill.
//
// rill is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// rill is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with rill. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"math/big"

	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/transfer"
)

// The protocol machines ship separately. Until they are wired in, the node
// keeps its indexes and queues but makes no payment progress.

type placeholderChannelMachine struct{}

func (placeholderChannelMachine) StateTransition(channelState *transfer.ChannelState, stateChange transfer.StateChange,
	prg *transfer.PRG, blockNumber int64) transfer.TransitionResult {
	return transfer.TransitionResult{NewState: channelState}
}

func (placeholderChannelMachine) EventsForClose(channelState *transfer.ChannelState, blockNumber int64) []transfer.Event {
	return nil
}

type placeholderTokenNetworkMachine struct{}

func (placeholderTokenNetworkMachine) StateTransition(tokenNetworkState *transfer.TokenNetworkState, stateChange transfer.StateChange,
	prg *transfer.PRG, blockNumber int64) transfer.TransitionResult {
	return transfer.TransitionResult{NewState: tokenNetworkState}
}

func (placeholderTokenNetworkMachine) SubdispatchToChannelByID(tokenNetworkState *transfer.TokenNetworkState, stateChange transfer.StateChange,
	prg *transfer.PRG, blockNumber int64) transfer.TransitionResult {
	return transfer.TransitionResult{NewState: tokenNetworkState}
}

type placeholderPaymentMachine struct{}

func (placeholderPaymentMachine) StateTransition(taskState interface{}, stateChange transfer.StateChange,
	channelIDsToChannels map[common.Hash]*transfer.ChannelState, prg *transfer.PRG, blockNumber int64) transfer.TransitionResult {
	return transfer.TransitionResult{NewState: taskState}
}

type placeholderTargetMachine struct{}

func (placeholderTargetMachine) StateTransition(taskState interface{}, stateChange transfer.StateChange,
	channelState *transfer.ChannelState, prg *transfer.PRG, blockNumber int64) transfer.TransitionResult {
	return transfer.TransitionResult{NewState: taskState}
}

type placeholderRouting struct{}

func (placeholderRouting) GetBestRoutes(nodeState *transfer.NodeState, paymentNetworkIdentifier, tokenAddress,
	fromAddress, toAddress common.Address, amount *big.Int, previousAddress common.Address) []transfer.RouteState {
	return nil
}
