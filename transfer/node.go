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

package transfer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/rillnet/rill/common"
)

// StateMachine is the top-level reducer of a rill node. It routes every
// state change to the nested machines owning the affected slice of the
// node state and collects their events.
//
// StateTransition must be called from a single goroutine. The surrounding
// services serialize state changes through one queue, all parallelism lives
// outside the reducer.
type StateMachine struct {
	channel      ChannelMachine
	tokenNetwork TokenNetworkMachine
	initiator    PaymentMachine
	mediator     PaymentMachine
	target       TargetMachine
}

// NewStateMachine wires the reducer to its nested machines.
func NewStateMachine(channel ChannelMachine, tokenNetwork TokenNetworkMachine,
	initiator, mediator PaymentMachine, target TargetMachine) *StateMachine {
	return &StateMachine{
		channel:      channel,
		tokenNetwork: tokenNetwork,
		initiator:    initiator,
		mediator:     mediator,
		target:       target,
	}
}

// Map iteration order is randomized in Go, so every traversal of the state
// tree walks keys in ascending byte order. Two nodes applying the same
// state-change sequence must emit identical event sequences.

func sortedPaymentNetworks(nodeState *NodeState) []*PaymentNetworkState {
	paymentNetworks := make([]*PaymentNetworkState, 0, len(nodeState.IdentifiersToPaymentNetworks))
	for _, paymentNetwork := range nodeState.IdentifiersToPaymentNetworks {
		paymentNetworks = append(paymentNetworks, paymentNetwork)
	}
	sort.Slice(paymentNetworks, func(i, j int) bool {
		return bytes.Compare(paymentNetworks[i].Address[:], paymentNetworks[j].Address[:]) < 0
	})
	return paymentNetworks
}

func sortedTokenNetworks(paymentNetwork *PaymentNetworkState) []*TokenNetworkState {
	tokenNetworks := make([]*TokenNetworkState, 0, len(paymentNetwork.TokenAddressesToTokenNetworks))
	for _, tokenNetwork := range paymentNetwork.TokenAddressesToTokenNetworks {
		tokenNetworks = append(tokenNetworks, tokenNetwork)
	}
	sort.Slice(tokenNetworks, func(i, j int) bool {
		return bytes.Compare(tokenNetworks[i].TokenAddress[:], tokenNetworks[j].TokenAddress[:]) < 0
	})
	return tokenNetworks
}

func sortedChannels(channels map[common.Hash]*ChannelState) []*ChannelState {
	sorted := make([]*ChannelState, 0, len(channels))
	for _, channelState := range channels {
		sorted = append(sorted, channelState)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Identifier[:], sorted[j].Identifier[:]) < 0
	})
	return sorted
}

func sortedPartnerChannels(channels map[common.Address]*ChannelState) []*ChannelState {
	sorted := make([]*ChannelState, 0, len(channels))
	for _, channelState := range channels {
		sorted = append(sorted, channelState)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].PartnerAddress[:], sorted[j].PartnerAddress[:]) < 0
	})
	return sorted
}

func sortedSecretHashes(tasks map[common.Hash]Task) []common.Hash {
	secretHashes := make([]common.Hash, 0, len(tasks))
	for secretHash := range tasks {
		secretHashes = append(secretHashes, secretHash)
	}
	sort.Slice(secretHashes, func(i, j int) bool {
		return bytes.Compare(secretHashes[i][:], secretHashes[j][:]) < 0
	})
	return secretHashes
}

// maybeAddTokenNetwork attaches tokenNetworkState under the payment
// network, creating the payment network if this is its first token. A token
// network already indexed under its token address is left untouched.
func maybeAddTokenNetwork(nodeState *NodeState, paymentNetworkIdentifier common.Address, tokenNetworkState *TokenNetworkState) {
	paymentNetworkState, previousTokenNetwork := GetNetworks(
		nodeState,
		paymentNetworkIdentifier,
		tokenNetworkState.TokenAddress,
	)

	if paymentNetworkState == nil {
		paymentNetworkState = NewPaymentNetworkState(
			paymentNetworkIdentifier,
			[]*TokenNetworkState{tokenNetworkState},
		)
		nodeState.IdentifiersToPaymentNetworks[paymentNetworkIdentifier] = paymentNetworkState
	} else if previousTokenNetwork == nil {
		paymentNetworkState.TokenIdentifiersToTokenNetworks[tokenNetworkState.Address] = tokenNetworkState
		paymentNetworkState.TokenAddressesToTokenNetworks[tokenNetworkState.TokenAddress] = tokenNetworkState
	}
}

// pruneTokenNetwork removes a terminated token network from both inner
// indexes of its payment network.
func pruneTokenNetwork(paymentNetworkState *PaymentNetworkState, tokenNetworkState *TokenNetworkState) {
	delete(paymentNetworkState.TokenAddressesToTokenNetworks, tokenNetworkState.TokenAddress)
	delete(paymentNetworkState.TokenIdentifiersToTokenNetworks, tokenNetworkState.Address)
}

func (sm *StateMachine) subdispatchToAllChannels(nodeState *NodeState, stateChange StateChange, blockNumber int64) TransitionResult {
	var events []Event

	for _, paymentNetwork := range sortedPaymentNetworks(nodeState) {
		for _, tokenNetworkState := range sortedTokenNetworks(paymentNetwork) {
			for _, channelState := range sortedChannels(tokenNetworkState.ChannelIdentifiersToChannels) {
				result := sm.channel.StateTransition(channelState, stateChange, nodeState.PRG, blockNumber)
				events = append(events, result.Events...)
			}
		}
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

// subdispatchToAllLockedTransfers snapshots the task keys before
// dispatching, tasks created while iterating are not visited in the same
// pass.
func (sm *StateMachine) subdispatchToAllLockedTransfers(nodeState *NodeState, stateChange StateChange) TransitionResult {
	var events []Event

	for _, secretHash := range sortedSecretHashes(nodeState.PaymentMapping.SecretHashesToTask) {
		result := sm.subdispatchToPaymentTask(nodeState, stateChange, secretHash)
		events = append(events, result.Events...)
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

// subdispatchToPaymentTask routes the state change to whichever task is
// registered under secretHash. Missing index entries make the dispatch a
// no-op, chain reorganizations and message reordering produce such
// references routinely.
func (sm *StateMachine) subdispatchToPaymentTask(nodeState *NodeState, stateChange StateChange, secretHash common.Hash) TransitionResult {
	blockNumber := nodeState.BlockNumber
	var events []Event

	switch task := nodeState.PaymentMapping.SecretHashesToTask[secretHash].(type) {
	case *InitiatorTask:
		tokenNetworkState := GetTokenNetwork(nodeState, task.PaymentNetworkIdentifier, task.TokenAddress)
		if tokenNetworkState != nil {
			subIteration := sm.initiator.StateTransition(
				task.ManagerState,
				stateChange,
				tokenNetworkState.ChannelIdentifiersToChannels,
				nodeState.PRG,
				blockNumber,
			)
			events = subIteration.Events
			if subIteration.NewState == nil {
				delete(nodeState.PaymentMapping.SecretHashesToTask, secretHash)
			} else {
				task.ManagerState = subIteration.NewState
			}
		}

	case *MediatorTask:
		tokenNetworkState := GetTokenNetwork(nodeState, task.PaymentNetworkIdentifier, task.TokenAddress)
		if tokenNetworkState != nil {
			subIteration := sm.mediator.StateTransition(
				task.MediatorState,
				stateChange,
				tokenNetworkState.ChannelIdentifiersToChannels,
				nodeState.PRG,
				blockNumber,
			)
			events = subIteration.Events
			if subIteration.NewState == nil {
				delete(nodeState.PaymentMapping.SecretHashesToTask, secretHash)
			} else {
				task.MediatorState = subIteration.NewState
			}
		}

	case *TargetTask:
		channelState := GetChannelStateByTokenAddress(
			nodeState,
			task.PaymentNetworkIdentifier,
			task.TokenAddress,
			task.ChannelIdentifier,
		)
		if channelState != nil {
			subIteration := sm.target.StateTransition(
				task.TargetState,
				stateChange,
				channelState,
				nodeState.PRG,
				blockNumber,
			)
			events = subIteration.Events
			if subIteration.NewState == nil {
				delete(nodeState.PaymentMapping.SecretHashesToTask, secretHash)
			} else {
				task.TargetState = subIteration.NewState
			}
		}
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) subdispatchInitiatorTask(nodeState *NodeState, stateChange StateChange,
	paymentNetworkIdentifier, tokenAddress common.Address, secretHash common.Hash) TransitionResult {

	isValidSubtask := true
	var managerState interface{}

	switch task := nodeState.PaymentMapping.SecretHashesToTask[secretHash].(type) {
	case nil:
	case *InitiatorTask:
		isValidSubtask = paymentNetworkIdentifier == task.PaymentNetworkIdentifier &&
			tokenAddress == task.TokenAddress
		managerState = task.ManagerState
	default:
		// The secret hash is in use by another role, reject silently.
		isValidSubtask = false
	}

	var events []Event
	if isValidSubtask {
		tokenNetworkState := GetTokenNetwork(nodeState, paymentNetworkIdentifier, tokenAddress)
		if tokenNetworkState != nil {
			iteration := sm.initiator.StateTransition(
				managerState,
				stateChange,
				tokenNetworkState.ChannelIdentifiersToChannels,
				nodeState.PRG,
				nodeState.BlockNumber,
			)
			events = iteration.Events

			if iteration.NewState != nil {
				nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &InitiatorTask{
					PaymentNetworkIdentifier: paymentNetworkIdentifier,
					TokenAddress:             tokenAddress,
					ManagerState:             iteration.NewState,
				}
			} else {
				delete(nodeState.PaymentMapping.SecretHashesToTask, secretHash)
			}
		}
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) subdispatchMediatorTask(nodeState *NodeState, stateChange StateChange,
	paymentNetworkIdentifier, tokenAddress common.Address, secretHash common.Hash) TransitionResult {

	isValidSubtask := true
	var mediatorState interface{}

	switch task := nodeState.PaymentMapping.SecretHashesToTask[secretHash].(type) {
	case nil:
	case *MediatorTask:
		isValidSubtask = paymentNetworkIdentifier == task.PaymentNetworkIdentifier &&
			tokenAddress == task.TokenAddress
		mediatorState = task.MediatorState
	default:
		isValidSubtask = false
	}

	var events []Event
	if isValidSubtask {
		tokenNetworkState := GetTokenNetwork(nodeState, paymentNetworkIdentifier, tokenAddress)
		if tokenNetworkState != nil {
			iteration := sm.mediator.StateTransition(
				mediatorState,
				stateChange,
				tokenNetworkState.ChannelIdentifiersToChannels,
				nodeState.PRG,
				nodeState.BlockNumber,
			)
			events = iteration.Events

			if iteration.NewState != nil {
				nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &MediatorTask{
					PaymentNetworkIdentifier: paymentNetworkIdentifier,
					TokenAddress:             tokenAddress,
					MediatorState:            iteration.NewState,
				}
			} else {
				delete(nodeState.PaymentMapping.SecretHashesToTask, secretHash)
			}
		}
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) subdispatchTargetTask(nodeState *NodeState, stateChange StateChange,
	paymentNetworkIdentifier, tokenAddress common.Address, channelIdentifier, secretHash common.Hash) TransitionResult {

	isValidSubtask := true
	var targetState interface{}

	switch task := nodeState.PaymentMapping.SecretHashesToTask[secretHash].(type) {
	case nil:
	case *TargetTask:
		isValidSubtask = paymentNetworkIdentifier == task.PaymentNetworkIdentifier &&
			tokenAddress == task.TokenAddress
		targetState = task.TargetState
	default:
		isValidSubtask = false
	}

	var events []Event
	if isValidSubtask {
		channelState := GetChannelStateByTokenAddress(nodeState, paymentNetworkIdentifier, tokenAddress, channelIdentifier)
		if channelState != nil {
			iteration := sm.target.StateTransition(
				targetState,
				stateChange,
				channelState,
				nodeState.PRG,
				nodeState.BlockNumber,
			)
			events = iteration.Events

			if iteration.NewState != nil {
				nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &TargetTask{
					PaymentNetworkIdentifier: paymentNetworkIdentifier,
					TokenAddress:             tokenAddress,
					ChannelIdentifier:        channelIdentifier,
					TargetState:              iteration.NewState,
				}
			} else {
				delete(nodeState.PaymentMapping.SecretHashesToTask, secretHash)
			}
		}
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) handleBlock(nodeState *NodeState, stateChange *Block) TransitionResult {
	blockNumber := stateChange.BlockNumber
	nodeState.BlockNumber = blockNumber

	// Channels first, then the in-flight transfers.
	channelsResult := sm.subdispatchToAllChannels(nodeState, stateChange, blockNumber)
	transfersResult := sm.subdispatchToAllLockedTransfers(nodeState, stateChange)

	events := append(channelsResult.Events, transfersResult.Events...)
	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) handleNodeInit(stateChange *ActionInitNode) TransitionResult {
	nodeState := NewNodeState(stateChange.PRG, stateChange.BlockNumber)
	return TransitionResult{NewState: nodeState, Events: nil}
}

// handleTokenNetworkAction resolves the token network the state change
// names and lets it handle the change. A token network reporting terminal
// completion is pruned from its payment network.
func (sm *StateMachine) handleTokenNetworkAction(nodeState *NodeState, stateChange StateChange,
	paymentNetworkIdentifier, tokenAddress common.Address) TransitionResult {

	paymentNetworkState, tokenNetworkState := GetNetworks(nodeState, paymentNetworkIdentifier, tokenAddress)

	var events []Event
	if tokenNetworkState != nil {
		iteration := sm.tokenNetwork.StateTransition(tokenNetworkState, stateChange, nodeState.PRG, nodeState.BlockNumber)
		if iteration.NewState == nil {
			pruneTokenNetwork(paymentNetworkState, tokenNetworkState)
		}
		events = iteration.Events
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) handleNewTokenNetwork(nodeState *NodeState, stateChange *ActionNewTokenNetwork) TransitionResult {
	tokenNetworkState := stateChange.TokenNetwork
	paymentNetwork := nodeState.IdentifiersToPaymentNetworks[stateChange.PaymentNetworkIdentifier]

	if paymentNetwork != nil {
		paymentNetwork.TokenIdentifiersToTokenNetworks[tokenNetworkState.Address] = tokenNetworkState
		paymentNetwork.TokenAddressesToTokenNetworks[tokenNetworkState.TokenAddress] = tokenNetworkState
	}

	return TransitionResult{NewState: nodeState, Events: nil}
}

func (sm *StateMachine) handleNodeChangeNetworkState(nodeState *NodeState, stateChange *ActionChangeNodeNetworkState) TransitionResult {
	nodeState.NodeAddressesToNetworkStates[stateChange.NodeAddress] = stateChange.NetworkState
	return TransitionResult{NewState: nodeState, Events: nil}
}

func (sm *StateMachine) handleLeaveAllNetworks(nodeState *NodeState) TransitionResult {
	var events []Event

	for _, paymentNetwork := range sortedPaymentNetworks(nodeState) {
		for _, tokenNetworkState := range sortedTokenNetworks(paymentNetwork) {
			for _, channelState := range sortedPartnerChannels(tokenNetworkState.PartnerAddressesToChannels) {
				events = append(events, sm.channel.EventsForClose(channelState, nodeState.BlockNumber)...)
			}
		}
	}

	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) handleNewPaymentNetwork(nodeState *NodeState, stateChange *ContractReceiveNewPaymentNetwork) TransitionResult {
	paymentNetwork := stateChange.PaymentNetwork
	if _, ok := nodeState.IdentifiersToPaymentNetworks[paymentNetwork.Address]; !ok {
		nodeState.IdentifiersToPaymentNetworks[paymentNetwork.Address] = paymentNetwork
	}
	return TransitionResult{NewState: nodeState, Events: nil}
}

func (sm *StateMachine) handleTokenAdded(nodeState *NodeState, stateChange *ContractReceiveNewTokenNetwork) TransitionResult {
	maybeAddTokenNetwork(nodeState, stateChange.PaymentNetworkIdentifier, stateChange.TokenNetwork)
	return TransitionResult{NewState: nodeState, Events: nil}
}

// handleChannelWithdraw first lets the channel process the withdraw, then
// emulates a secret reveal so the secret is registered with the task and
// the protocol proceeds on the other channels.
func (sm *StateMachine) handleChannelWithdraw(nodeState *NodeState, stateChange *ContractReceiveChannelWithdraw) TransitionResult {
	paymentNetworkState, tokenNetworkState := GetNetworks(
		nodeState,
		stateChange.PaymentNetworkIdentifier,
		stateChange.TokenAddress,
	)

	var events []Event
	if tokenNetworkState != nil {
		subIteration := sm.tokenNetwork.SubdispatchToChannelByID(tokenNetworkState, stateChange, nodeState.PRG, nodeState.BlockNumber)
		events = append(events, subIteration.Events...)

		if subIteration.NewState == nil {
			pruneTokenNetwork(paymentNetworkState, tokenNetworkState)
		}
	}

	secretReveal := NewReceiveSecretReveal(stateChange.Secret, common.Address{})
	revealIteration := sm.handleSecretReveal(nodeState, secretReveal)
	events = append(events, revealIteration.Events...)

	return TransitionResult{NewState: nodeState, Events: events}
}

func (sm *StateMachine) handleSecretReveal(nodeState *NodeState, stateChange *ReceiveSecretReveal) TransitionResult {
	return sm.subdispatchToPaymentTask(nodeState, stateChange, stateChange.SecretHash)
}

func (sm *StateMachine) handleInitInitiator(nodeState *NodeState, stateChange *ActionInitInitiator) TransitionResult {
	transfer := stateChange.Transfer
	return sm.subdispatchInitiatorTask(
		nodeState,
		stateChange,
		stateChange.PaymentNetworkIdentifier,
		transfer.Token,
		transfer.SecretHash,
	)
}

func (sm *StateMachine) handleInitMediator(nodeState *NodeState, stateChange *ActionInitMediator) TransitionResult {
	transfer := stateChange.FromTransfer
	return sm.subdispatchMediatorTask(
		nodeState,
		stateChange,
		stateChange.PaymentNetworkIdentifier,
		transfer.Token,
		transfer.Lock.SecretHash,
	)
}

func (sm *StateMachine) handleInitTarget(nodeState *NodeState, stateChange *ActionInitTarget) TransitionResult {
	transfer := stateChange.Transfer
	return sm.subdispatchTargetTask(
		nodeState,
		stateChange,
		stateChange.PaymentNetworkIdentifier,
		transfer.Token,
		transfer.BalanceProof.ChannelIdentifier,
		transfer.Lock.SecretHash,
	)
}

func (sm *StateMachine) handleReceiveTransferRefund(nodeState *NodeState, stateChange *ReceiveTransferRefund) TransitionResult {
	return sm.subdispatchToPaymentTask(nodeState, stateChange, stateChange.Transfer.Lock.SecretHash)
}

func (sm *StateMachine) handleReceiveTransferRefundCancelRoute(nodeState *NodeState, stateChange *ReceiveTransferRefundCancelRoute) TransitionResult {
	return sm.subdispatchToPaymentTask(nodeState, stateChange, stateChange.Transfer.Lock.SecretHash)
}

func (sm *StateMachine) handleReceiveSecretRequest(nodeState *NodeState, stateChange *ReceiveSecretRequest) TransitionResult {
	return sm.subdispatchToPaymentTask(nodeState, stateChange, stateChange.SecretHash)
}

func (sm *StateMachine) handleReceiveUnlock(nodeState *NodeState, stateChange *ReceiveUnlock) TransitionResult {
	return sm.subdispatchToPaymentTask(nodeState, stateChange, stateChange.SecretHash)
}

// sanityCheck asserts the result of a handler is rooted in a node state.
// Failing it is a programming error, not a recoverable fault.
func sanityCheck(iteration TransitionResult) *NodeState {
	nodeState, ok := iteration.NewState.(*NodeState)
	if !ok || nodeState == nil {
		panic(fmt.Sprintf("state transition did not produce a node state: %T", iteration.NewState))
	}
	return nodeState
}

// StateTransition applies one state change and returns the resulting state
// together with the events the nested machines emitted. SendMessageEvents
// are additionally appended to the per-recipient outbound queues of the
// returned state, the events list keeps them as well.
//
// For ActionInitNode the returned NewState is a fresh aggregate, the caller
// must adopt it.
func (sm *StateMachine) StateTransition(nodeState *NodeState, stateChange StateChange) TransitionResult {
	var iteration TransitionResult

	switch stateChange := stateChange.(type) {
	case *Block:
		iteration = sm.handleBlock(nodeState, stateChange)
	case *ActionInitNode:
		iteration = sm.handleNodeInit(stateChange)
	case *ActionNewTokenNetwork:
		iteration = sm.handleNewTokenNetwork(nodeState, stateChange)
	case *ActionChannelClose:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ActionChangeNodeNetworkState:
		iteration = sm.handleNodeChangeNetworkState(nodeState, stateChange)
	case *ActionTransferDirect:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ActionLeaveAllNetworks:
		iteration = sm.handleLeaveAllNetworks(nodeState)
	case *ActionInitInitiator:
		iteration = sm.handleInitInitiator(nodeState, stateChange)
	case *ActionInitMediator:
		iteration = sm.handleInitMediator(nodeState, stateChange)
	case *ActionInitTarget:
		iteration = sm.handleInitTarget(nodeState, stateChange)
	case *ContractReceiveNewPaymentNetwork:
		iteration = sm.handleNewPaymentNetwork(nodeState, stateChange)
	case *ContractReceiveNewTokenNetwork:
		iteration = sm.handleTokenAdded(nodeState, stateChange)
	case *ContractReceiveChannelWithdraw:
		iteration = sm.handleChannelWithdraw(nodeState, stateChange)
	case *ContractReceiveChannelNew:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ContractReceiveChannelClosed:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ContractReceiveChannelNewBalance:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ContractReceiveChannelSettled:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ContractReceiveRouteNew:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ReceiveTransferDirect:
		iteration = sm.handleTokenNetworkAction(nodeState, stateChange, stateChange.PaymentNetworkIdentifier, stateChange.TokenAddress)
	case *ReceiveSecretReveal:
		iteration = sm.handleSecretReveal(nodeState, stateChange)
	case *ReceiveTransferRefundCancelRoute:
		iteration = sm.handleReceiveTransferRefundCancelRoute(nodeState, stateChange)
	case *ReceiveTransferRefund:
		iteration = sm.handleReceiveTransferRefund(nodeState, stateChange)
	case *ReceiveSecretRequest:
		iteration = sm.handleReceiveSecretRequest(nodeState, stateChange)
	case *ReceiveUnlock:
		iteration = sm.handleReceiveUnlock(nodeState, stateChange)
	}

	newState := sanityCheck(iteration)

	for _, event := range iteration.Events {
		if sendMessage, ok := event.(SendMessageEvent); ok {
			queueID := QueueID{Recipient: sendMessage.Recipient(), Name: sendMessage.QueueName()}
			newState.QueueIDsToQueues[queueID] = append(newState.QueueIDsToQueues[queueID], sendMessage)
		}
	}

	return iteration
}
