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
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/utils"
)

// fakeSendEvent is a SendMessageEvent emitted by the scripted machines.
type fakeSendEvent struct {
	To    common.Address
	Queue string
	Tag   string
}

func (e *fakeSendEvent) Recipient() common.Address { return e.To }
func (e *fakeSendEvent) QueueName() string         { return e.Queue }

// fakeEvent is an opaque event the reducer must forward without queueing.
type fakeEvent struct {
	Tag string
}

type fakeChannelMachine struct {
	// events returned per channel identifier.
	events map[common.Hash][]Event
	// closeEvents returned by EventsForClose per channel identifier.
	closeEvents map[common.Hash][]Event

	calls        []common.Hash
	stateChanges []StateChange
}

func (m *fakeChannelMachine) StateTransition(channelState *ChannelState, stateChange StateChange, prg *PRG, blockNumber int64) TransitionResult {
	m.calls = append(m.calls, channelState.Identifier)
	m.stateChanges = append(m.stateChanges, stateChange)
	return TransitionResult{NewState: channelState, Events: m.events[channelState.Identifier]}
}

func (m *fakeChannelMachine) EventsForClose(channelState *ChannelState, blockNumber int64) []Event {
	m.calls = append(m.calls, channelState.Identifier)
	return m.closeEvents[channelState.Identifier]
}

type fakeTokenNetworkMachine struct {
	// result overrides the default pass-through iteration when set.
	result   *TransitionResult
	byID     *TransitionResult
	calls    int
	byIDCall int

	stateChanges []StateChange
}

func (m *fakeTokenNetworkMachine) StateTransition(tokenNetworkState *TokenNetworkState, stateChange StateChange, prg *PRG, blockNumber int64) TransitionResult {
	m.calls++
	m.stateChanges = append(m.stateChanges, stateChange)
	if m.result != nil {
		return *m.result
	}
	return TransitionResult{NewState: tokenNetworkState}
}

func (m *fakeTokenNetworkMachine) SubdispatchToChannelByID(tokenNetworkState *TokenNetworkState, stateChange StateChange, prg *PRG, blockNumber int64) TransitionResult {
	m.byIDCall++
	m.stateChanges = append(m.stateChanges, stateChange)
	if m.byID != nil {
		return *m.byID
	}
	return TransitionResult{NewState: tokenNetworkState}
}

type fakePaymentMachine struct {
	result *TransitionResult

	calls        int
	states       []interface{}
	stateChanges []StateChange
	contexts     []map[common.Hash]*ChannelState
}

func (m *fakePaymentMachine) StateTransition(taskState interface{}, stateChange StateChange,
	channelIDsToChannels map[common.Hash]*ChannelState, prg *PRG, blockNumber int64) TransitionResult {
	m.calls++
	m.states = append(m.states, taskState)
	m.stateChanges = append(m.stateChanges, stateChange)
	m.contexts = append(m.contexts, channelIDsToChannels)
	if m.result != nil {
		return *m.result
	}
	return TransitionResult{NewState: taskState}
}

type fakeTargetMachine struct {
	result *TransitionResult

	calls        int
	states       []interface{}
	stateChanges []StateChange
	channels     []*ChannelState
}

func (m *fakeTargetMachine) StateTransition(taskState interface{}, stateChange StateChange,
	channelState *ChannelState, prg *PRG, blockNumber int64) TransitionResult {
	m.calls++
	m.states = append(m.states, taskState)
	m.stateChanges = append(m.stateChanges, stateChange)
	m.channels = append(m.channels, channelState)
	if m.result != nil {
		return *m.result
	}
	return TransitionResult{NewState: taskState}
}

type testMachines struct {
	channel      *fakeChannelMachine
	tokenNetwork *fakeTokenNetworkMachine
	initiator    *fakePaymentMachine
	mediator     *fakePaymentMachine
	target       *fakeTargetMachine
}

func newTestStateMachine() (*StateMachine, *testMachines) {
	machines := &testMachines{
		channel:      &fakeChannelMachine{events: make(map[common.Hash][]Event), closeEvents: make(map[common.Hash][]Event)},
		tokenNetwork: &fakeTokenNetworkMachine{},
		initiator:    &fakePaymentMachine{},
		mediator:     &fakePaymentMachine{},
		target:       &fakeTargetMachine{},
	}
	sm := NewStateMachine(machines.channel, machines.tokenNetwork, machines.initiator, machines.mediator, machines.target)
	return sm, machines
}

var (
	pnAddress    = common.HexToAddress("0xAA")
	tnAddress    = common.HexToAddress("0xBB")
	tokenAddress = common.HexToAddress("0xCC")
	partnerA     = common.HexToAddress("0x0A")
	partnerB     = common.HexToAddress("0x0B")
	channelIDA   = common.HexToHash("0x01")
	channelIDB   = common.HexToHash("0x02")
)

// newTestNodeState builds a node state with one payment network, one token
// network and two channels.
func newTestNodeState() *NodeState {
	nodeState := NewNodeState(NewPRG(42), 1)

	tokenNetwork := NewTokenNetworkState(tnAddress, tokenAddress)
	channelA := &ChannelState{Identifier: channelIDA, TokenAddress: tokenAddress, PartnerAddress: partnerA}
	channelB := &ChannelState{Identifier: channelIDB, TokenAddress: tokenAddress, PartnerAddress: partnerB}
	tokenNetwork.ChannelIdentifiersToChannels[channelIDA] = channelA
	tokenNetwork.ChannelIdentifiersToChannels[channelIDB] = channelB
	tokenNetwork.PartnerAddressesToChannels[partnerA] = channelA
	tokenNetwork.PartnerAddressesToChannels[partnerB] = channelB

	nodeState.IdentifiersToPaymentNetworks[pnAddress] = NewPaymentNetworkState(
		pnAddress, []*TokenNetworkState{tokenNetwork})

	return nodeState
}

func newInitInitiator(secret common.Hash) *ActionInitInitiator {
	return &ActionInitInitiator{
		PaymentNetworkIdentifier: pnAddress,
		Transfer: NewTransferDescriptionWithSecretState(
			pnAddress, 1, big.NewInt(100), tokenAddress, partnerA, partnerB, secret),
		Routes: []RouteState{{NodeAddress: partnerA, ChannelIdentifier: channelIDA}},
	}
}

func TestNodeInitAndNetworkRegistration(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := NewNodeState(NewPRG(1), 99)

	iteration := sm.StateTransition(nodeState, &ActionInitNode{PRG: NewPRG(7), BlockNumber: 0})
	assert.Empty(t, iteration.Events)
	nodeState = iteration.NewState.(*NodeState)
	assert.NotNil(t, nodeState)
	assert.Equal(t, int64(0), nodeState.BlockNumber)
	assert.Empty(t, nodeState.IdentifiersToPaymentNetworks)

	iteration = sm.StateTransition(nodeState, &ContractReceiveNewPaymentNetwork{
		PaymentNetwork: NewPaymentNetworkState(pnAddress, nil),
	})
	assert.Empty(t, iteration.Events)

	iteration = sm.StateTransition(nodeState, &ContractReceiveNewTokenNetwork{
		PaymentNetworkIdentifier: pnAddress,
		TokenNetwork:             NewTokenNetworkState(tnAddress, tokenAddress),
	})
	assert.Empty(t, iteration.Events)

	paymentNetwork := nodeState.IdentifiersToPaymentNetworks[pnAddress]
	assert.NotNil(t, paymentNetwork)
	tokenNetwork := paymentNetwork.TokenAddressesToTokenNetworks[tokenAddress]
	assert.NotNil(t, tokenNetwork)
	assert.Equal(t, tnAddress, tokenNetwork.Address)
	// Both inner indexes reference the token network.
	assert.Equal(t, tokenNetwork, paymentNetwork.TokenIdentifiersToTokenNetworks[tnAddress])
}

func TestNewPaymentNetworkKeepsExisting(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := newTestNodeState()
	existing := nodeState.IdentifiersToPaymentNetworks[pnAddress]

	sm.StateTransition(nodeState, &ContractReceiveNewPaymentNetwork{
		PaymentNetwork: NewPaymentNetworkState(pnAddress, nil),
	})
	assert.Equal(t, existing, nodeState.IdentifiersToPaymentNetworks[pnAddress])
}

func TestContractReceiveNewTokenNetworkCreatesPaymentNetwork(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := NewNodeState(NewPRG(1), 0)

	sm.StateTransition(nodeState, &ContractReceiveNewTokenNetwork{
		PaymentNetworkIdentifier: pnAddress,
		TokenNetwork:             NewTokenNetworkState(tnAddress, tokenAddress),
	})

	paymentNetwork := nodeState.IdentifiersToPaymentNetworks[pnAddress]
	assert.NotNil(t, paymentNetwork)
	assert.NotNil(t, paymentNetwork.TokenAddressesToTokenNetworks[tokenAddress])
	assert.NotNil(t, paymentNetwork.TokenIdentifiersToTokenNetworks[tnAddress])
}

func TestActionNewTokenNetworkRequiresPaymentNetwork(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := NewNodeState(NewPRG(1), 0)

	// Unknown payment network, nothing is attached.
	sm.StateTransition(nodeState, &ActionNewTokenNetwork{
		PaymentNetworkIdentifier: pnAddress,
		TokenNetwork:             NewTokenNetworkState(tnAddress, tokenAddress),
	})
	assert.Empty(t, nodeState.IdentifiersToPaymentNetworks)

	nodeState.IdentifiersToPaymentNetworks[pnAddress] = NewPaymentNetworkState(pnAddress, nil)
	sm.StateTransition(nodeState, &ActionNewTokenNetwork{
		PaymentNetworkIdentifier: pnAddress,
		TokenNetwork:             NewTokenNetworkState(tnAddress, tokenAddress),
	})
	paymentNetwork := nodeState.IdentifiersToPaymentNetworks[pnAddress]
	assert.NotNil(t, paymentNetwork.TokenAddressesToTokenNetworks[tokenAddress])
	assert.NotNil(t, paymentNetwork.TokenIdentifiersToTokenNetworks[tnAddress])
}

func TestBlockFanOut(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	eventA := &fakeSendEvent{To: partnerA, Queue: "q", Tag: "channel-a"}
	eventB := &fakeEvent{Tag: "channel-b"}
	eventC := &fakeEvent{Tag: "initiator"}
	machines.channel.events[channelIDA] = []Event{eventA}
	machines.channel.events[channelIDB] = []Event{eventB}

	secret := common.HexToHash("0x5E")
	secretHash := utils.ShaSecret(secret.Bytes())
	nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &InitiatorTask{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             tokenAddress,
		ManagerState:             "manager-state",
	}
	machines.initiator.result = &TransitionResult{NewState: "manager-state", Events: []Event{eventC}}

	iteration := sm.StateTransition(nodeState, &Block{BlockNumber: 100})

	assert.Equal(t, int64(100), nodeState.BlockNumber)
	// Channel events first in traversal order, then the task events.
	assert.Equal(t, []Event{eventA, eventB, eventC}, iteration.Events)
	assert.Equal(t, []common.Hash{channelIDA, channelIDB}, machines.channel.calls)
	// The task machine received the channel index of its token network.
	assert.Len(t, machines.initiator.contexts, 1)
	assert.Len(t, machines.initiator.contexts[0], 2)
}

func TestMonotonicBlock(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := NewNodeState(NewPRG(1), 0)

	for _, blockNumber := range []int64{5, 7, 7, 9} {
		sm.StateTransition(nodeState, &Block{BlockNumber: blockNumber})
	}
	assert.Equal(t, int64(9), nodeState.BlockNumber)
}

func TestChannelWithdrawTwoStep(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	secret := common.HexToHash("0x5EC2E7")
	secretHash := utils.ShaSecret(secret.Bytes())
	nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &InitiatorTask{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             tokenAddress,
		ManagerState:             "manager-state",
	}

	withdrawEvent := &fakeEvent{Tag: "withdraw"}
	revealEvent := &fakeEvent{Tag: "reveal"}
	tokenNetwork := nodeState.IdentifiersToPaymentNetworks[pnAddress].TokenAddressesToTokenNetworks[tokenAddress]
	machines.tokenNetwork.byID = &TransitionResult{NewState: tokenNetwork, Events: []Event{withdrawEvent}}
	machines.initiator.result = &TransitionResult{NewState: "manager-state", Events: []Event{revealEvent}}

	iteration := sm.StateTransition(nodeState, &ContractReceiveChannelWithdraw{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             tokenAddress,
		ChannelIdentifier:        channelIDA,
		Secret:                   secret,
		SecretHash:               secretHash,
	})

	assert.Equal(t, []Event{withdrawEvent, revealEvent}, iteration.Events)
	assert.Equal(t, 1, machines.tokenNetwork.byIDCall)

	// The task received the synthesized reveal carrying the withdrawn
	// secret and no sender.
	assert.Equal(t, 1, machines.initiator.calls)
	reveal, ok := machines.initiator.stateChanges[0].(*ReceiveSecretReveal)
	assert.True(t, ok)
	assert.Equal(t, secret, reveal.Secret)
	assert.Equal(t, secretHash, reveal.SecretHash)
	assert.Equal(t, common.Address{}, reveal.Sender)
}

func TestMissingTokenNetworkIsNoop(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()
	unknownToken := common.HexToAddress("0xDD")

	iteration := sm.StateTransition(nodeState, &ActionTransferDirect{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             unknownToken,
		ReceiverAddress:          partnerA,
		PaymentIdentifier:        1,
		Amount:                   big.NewInt(10),
	})

	assert.Empty(t, iteration.Events)
	assert.Equal(t, 0, machines.tokenNetwork.calls)
	assert.Equal(t, nodeState, iteration.NewState)
}

func TestRoleMismatchIsSilent(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	secret := common.HexToHash("0x11")
	secretHash := utils.ShaSecret(secret.Bytes())
	task := &MediatorTask{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             tokenAddress,
		MediatorState:            "mediator-state",
	}
	nodeState.PaymentMapping.SecretHashesToTask[secretHash] = task

	iteration := sm.StateTransition(nodeState, newInitInitiator(secret))

	assert.Empty(t, iteration.Events)
	assert.Equal(t, 0, machines.initiator.calls)
	assert.Equal(t, Task(task), nodeState.PaymentMapping.SecretHashesToTask[secretHash])
}

func TestInitiatorTaskLifecycle(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	secret := common.HexToHash("0x22")
	secretHash := utils.ShaSecret(secret.Bytes())

	// First dispatch creates the task from a nil inner state.
	machines.initiator.result = &TransitionResult{NewState: "manager-state-1"}
	sm.StateTransition(nodeState, newInitInitiator(secret))
	assert.Equal(t, 1, machines.initiator.calls)
	assert.Nil(t, machines.initiator.states[0])

	task, ok := nodeState.PaymentMapping.SecretHashesToTask[secretHash].(*InitiatorTask)
	assert.True(t, ok)
	assert.Equal(t, "manager-state-1", task.ManagerState)
	assert.Equal(t, pnAddress, task.PaymentNetworkIdentifier)
	assert.Equal(t, tokenAddress, task.TokenAddress)

	// Subsequent dispatches continue from the stored inner state.
	machines.initiator.result = &TransitionResult{NewState: "manager-state-2"}
	sm.StateTransition(nodeState, &ReceiveSecretRequest{SecretHash: secretHash, Sender: partnerB})
	assert.Equal(t, 2, machines.initiator.calls)
	assert.Equal(t, "manager-state-1", machines.initiator.states[1])
	task = nodeState.PaymentMapping.SecretHashesToTask[secretHash].(*InitiatorTask)
	assert.Equal(t, "manager-state-2", task.ManagerState)

	// A nil successor state is terminal, the task is removed.
	machines.initiator.result = &TransitionResult{NewState: nil}
	sm.StateTransition(nodeState, NewReceiveSecretReveal(secret, partnerB))
	assert.NotContains(t, nodeState.PaymentMapping.SecretHashesToTask, secretHash)
}

func TestTargetTaskUsesItsChannel(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	secret := common.HexToHash("0x33")
	secretHash := utils.ShaSecret(secret.Bytes())
	machines.target.result = &TransitionResult{NewState: "target-state"}

	stateChange := &ActionInitTarget{
		PaymentNetworkIdentifier: pnAddress,
		FromRoute:                RouteState{NodeAddress: partnerA, ChannelIdentifier: channelIDA},
		Transfer: &LockedTransferSignedState{
			PaymentIdentifier: 1,
			Token:             tokenAddress,
			BalanceProof:      &BalanceProofSignedState{ChannelIdentifier: channelIDA, Sender: partnerA},
			Lock:              &HashTimeLockState{Amount: big.NewInt(5), Expiration: 50, SecretHash: secretHash},
			Initiator:         partnerB,
			Target:            partnerA,
		},
	}
	sm.StateTransition(nodeState, stateChange)

	assert.Equal(t, 1, machines.target.calls)
	assert.Equal(t, channelIDA, machines.target.channels[0].Identifier)

	task, ok := nodeState.PaymentMapping.SecretHashesToTask[secretHash].(*TargetTask)
	assert.True(t, ok)
	assert.Equal(t, channelIDA, task.ChannelIdentifier)
	assert.Equal(t, "target-state", task.TargetState)
}

func TestTaskWithMissingTokenNetworkIsNoop(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	secret := common.HexToHash("0x44")
	secretHash := utils.ShaSecret(secret.Bytes())
	nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &MediatorTask{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             common.HexToAddress("0xDD"), // no such token network
		MediatorState:            "mediator-state",
	}

	iteration := sm.StateTransition(nodeState, NewReceiveSecretReveal(secret, partnerA))
	assert.Empty(t, iteration.Events)
	assert.Equal(t, 0, machines.mediator.calls)
}

func TestTokenNetworkTerminalPrune(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	machines.tokenNetwork.result = &TransitionResult{NewState: nil}
	sm.StateTransition(nodeState, &ActionChannelClose{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             tokenAddress,
		ChannelIdentifier:        channelIDA,
	})

	paymentNetwork := nodeState.IdentifiersToPaymentNetworks[pnAddress]
	assert.NotContains(t, paymentNetwork.TokenAddressesToTokenNetworks, tokenAddress)
	assert.NotContains(t, paymentNetwork.TokenIdentifiersToTokenNetworks, tnAddress)
}

func TestLeaveAllNetworks(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	closeA := &fakeEvent{Tag: "close-a"}
	closeB := &fakeEvent{Tag: "close-b"}
	machines.channel.closeEvents[channelIDA] = []Event{closeA}
	machines.channel.closeEvents[channelIDB] = []Event{closeB}

	iteration := sm.StateTransition(nodeState, &ActionLeaveAllNetworks{})

	// Events for every channel sorted by partner address, no mutation.
	assert.Equal(t, []Event{closeA, closeB}, iteration.Events)
	assert.Len(t, nodeState.IdentifiersToPaymentNetworks[pnAddress].TokenAddressesToTokenNetworks, 1)
}

func TestChangeNodeNetworkState(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := newTestNodeState()

	iteration := sm.StateTransition(nodeState, &ActionChangeNodeNetworkState{
		NodeAddress:  partnerA,
		NetworkState: NetworkReachable,
	})
	assert.Empty(t, iteration.Events)
	assert.Equal(t, NetworkReachable, nodeState.NodeAddressesToNetworkStates[partnerA])
}

func TestQueueOrderAndPreservation(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	sendOne := &fakeSendEvent{To: partnerA, Queue: "q", Tag: "one"}
	sendTwo := &fakeSendEvent{To: partnerA, Queue: "q", Tag: "two"}
	sendOther := &fakeSendEvent{To: partnerB, Queue: "q", Tag: "other"}
	opaque := &fakeEvent{Tag: "opaque"}

	machines.channel.events[channelIDA] = []Event{sendOne, opaque}
	machines.channel.events[channelIDB] = []Event{sendOther}
	iteration := sm.StateTransition(nodeState, &Block{BlockNumber: 2})

	// Queueing is cumulative, the events list still carries the send
	// events.
	assert.Contains(t, iteration.Events, Event(sendOne))
	assert.Contains(t, iteration.Events, Event(opaque))

	machines.channel.events[channelIDA] = []Event{sendTwo}
	machines.channel.events[channelIDB] = nil
	sm.StateTransition(nodeState, &Block{BlockNumber: 3})

	queueA := nodeState.QueueIDsToQueues[QueueID{Recipient: partnerA, Name: "q"}]
	assert.Equal(t, []SendMessageEvent{sendOne, sendTwo}, queueA)

	queueB := nodeState.QueueIDsToQueues[QueueID{Recipient: partnerB, Name: "q"}]
	assert.Equal(t, []SendMessageEvent{sendOther}, queueB)

	// Opaque events are never queued.
	for _, queue := range nodeState.QueueIDsToQueues {
		for _, event := range queue {
			assert.IsType(t, &fakeSendEvent{}, event)
		}
	}
}

func TestSecretRevealDispatchesBySecretHash(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	secret := common.HexToHash("0x55")
	secretHash := utils.ShaSecret(secret.Bytes())
	nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &MediatorTask{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             tokenAddress,
		MediatorState:            "mediator-state",
	}
	machines.mediator.result = &TransitionResult{NewState: "mediator-state"}

	sm.StateTransition(nodeState, NewReceiveSecretReveal(secret, partnerA))
	assert.Equal(t, 1, machines.mediator.calls)
	assert.Equal(t, "mediator-state", machines.mediator.states[0])

	// A reveal for an unknown hash is a no-op.
	sm.StateTransition(nodeState, NewReceiveSecretReveal(common.HexToHash("0x66"), partnerA))
	assert.Equal(t, 1, machines.mediator.calls)
}

func TestRefundDispatchesByLockSecretHash(t *testing.T) {
	sm, machines := newTestStateMachine()
	nodeState := newTestNodeState()

	secretHash := common.HexToHash("0x77")
	nodeState.PaymentMapping.SecretHashesToTask[secretHash] = &MediatorTask{
		PaymentNetworkIdentifier: pnAddress,
		TokenAddress:             tokenAddress,
		MediatorState:            "mediator-state",
	}
	machines.mediator.result = &TransitionResult{NewState: "mediator-state"}

	sm.StateTransition(nodeState, &ReceiveTransferRefund{
		Sender: partnerA,
		Transfer: &LockedTransferSignedState{
			Token: tokenAddress,
			Lock:  &HashTimeLockState{Amount: big.NewInt(1), Expiration: 10, SecretHash: secretHash},
		},
	})
	assert.Equal(t, 1, machines.mediator.calls)
}

func TestUnknownStateChangePanics(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := newTestNodeState()

	type bogusStateChange struct{}
	assert.Panics(t, func() {
		sm.StateTransition(nodeState, &bogusStateChange{})
	})
}

// applyScenario drives one state machine through a fixed sequence and
// returns every emitted event.
func applyScenario(sm *StateMachine, machines *testMachines, nodeState *NodeState) []Event {
	machines.channel.events[channelIDA] = []Event{&fakeSendEvent{To: partnerA, Queue: "q", Tag: "a"}}
	machines.channel.events[channelIDB] = []Event{&fakeSendEvent{To: partnerB, Queue: "q", Tag: "b"}}

	var events []Event
	secret := common.HexToHash("0x88")

	machines.initiator.result = &TransitionResult{NewState: "manager-state"}
	for _, stateChange := range []StateChange{
		newInitInitiator(secret),
		&Block{BlockNumber: 2},
		&Block{BlockNumber: 3},
		&ActionChangeNodeNetworkState{NodeAddress: partnerA, NetworkState: NetworkReachable},
	} {
		iteration := sm.StateTransition(nodeState, stateChange)
		events = append(events, iteration.Events...)
	}
	return events
}

func TestDeterminism(t *testing.T) {
	smOne, machinesOne := newTestStateMachine()
	smTwo, machinesTwo := newTestStateMachine()
	stateOne := newTestNodeState()
	stateTwo := newTestNodeState()

	eventsOne := applyScenario(smOne, machinesOne, stateOne)
	eventsTwo := applyScenario(smTwo, machinesTwo, stateTwo)

	assert.Equal(t, eventsOne, eventsTwo)
	assert.Equal(t, stateOne, stateTwo)
}

func TestIndexConsistency(t *testing.T) {
	sm, _ := newTestStateMachine()
	nodeState := NewNodeState(NewPRG(1), 0)

	tokens := []common.Address{
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		common.HexToAddress("0x03"),
	}
	for i, token := range tokens {
		sm.StateTransition(nodeState, &ContractReceiveNewTokenNetwork{
			PaymentNetworkIdentifier: pnAddress,
			TokenNetwork:             NewTokenNetworkState(common.BytesToAddress([]byte{byte(0x10 + i)}), token),
		})
	}

	for _, paymentNetwork := range nodeState.IdentifiersToPaymentNetworks {
		assert.Equal(t,
			len(paymentNetwork.TokenIdentifiersToTokenNetworks),
			len(paymentNetwork.TokenAddressesToTokenNetworks))
		for _, tokenNetwork := range paymentNetwork.TokenAddressesToTokenNetworks {
			assert.Equal(t, tokenNetwork, paymentNetwork.TokenIdentifiersToTokenNetworks[tokenNetwork.Address])
		}
	}
}

func TestGetTransferRole(t *testing.T) {
	nodeState := newTestNodeState()

	initiatorHash := common.HexToHash("0x01")
	mediatorHash := common.HexToHash("0x02")
	targetHash := common.HexToHash("0x03")
	nodeState.PaymentMapping.SecretHashesToTask[initiatorHash] = &InitiatorTask{}
	nodeState.PaymentMapping.SecretHashesToTask[mediatorHash] = &MediatorTask{}
	nodeState.PaymentMapping.SecretHashesToTask[targetHash] = &TargetTask{}

	assert.Equal(t, RoleInitiator, GetTransferRole(nodeState, initiatorHash))
	assert.Equal(t, RoleMediator, GetTransferRole(nodeState, mediatorHash))
	assert.Equal(t, RoleTarget, GetTransferRole(nodeState, targetHash))
	assert.Equal(t, "", GetTransferRole(nodeState, common.HexToHash("0x04")))
}
