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

	"github.com/rillnet/rill/common"
)

// NodeNetworkState is the reachability of a peer as observed by the
// transport layer.
type NodeNetworkState string

const (
	NetworkUnknown     NodeNetworkState = "unknown"
	NetworkUnreachable NodeNetworkState = "unreachable"
	NetworkReachable   NodeNetworkState = "reachable"
)

// QueueID identifies one outbound message queue.
type QueueID struct {
	Recipient common.Address
	Name      string
}

// NodeState is the root aggregate owned by a rill node. Every other state
// object below is exclusively owned by it, back references are expressed as
// (payment network identifier, token address) keys that are re-resolved on
// each dispatch.
type NodeState struct {
	BlockNumber int64
	PRG         *PRG

	IdentifiersToPaymentNetworks map[common.Address]*PaymentNetworkState
	NodeAddressesToNetworkStates map[common.Address]NodeNetworkState
	PaymentMapping               PaymentMappingState
	QueueIDsToQueues             map[QueueID][]SendMessageEvent
}

// NewNodeState creates an empty aggregate at the given chain height.
func NewNodeState(prg *PRG, blockNumber int64) *NodeState {
	return &NodeState{
		BlockNumber:                  blockNumber,
		PRG:                          prg,
		IdentifiersToPaymentNetworks: make(map[common.Address]*PaymentNetworkState),
		NodeAddressesToNetworkStates: make(map[common.Address]NodeNetworkState),
		PaymentMapping: PaymentMappingState{
			SecretHashesToTask: make(map[common.Hash]Task),
		},
		QueueIDsToQueues: make(map[QueueID][]SendMessageEvent),
	}
}

// PaymentMappingState indexes the in-flight mediated transfers by the hash
// of the secret locking them.
type PaymentMappingState struct {
	SecretHashesToTask map[common.Hash]Task
}

// Task is a role-specific handle to an in-flight mediated transfer. The
// variant set is closed: InitiatorTask, MediatorTask, TargetTask.
type Task interface {
	isPaymentTask()
}

// InitiatorTask tracks a payment this node started.
type InitiatorTask struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ManagerState             interface{}
}

// MediatorTask tracks a payment this node forwards between two channels.
type MediatorTask struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	MediatorState            interface{}
}

// TargetTask tracks a payment this node is the final recipient of.
type TargetTask struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelIdentifier        common.Hash
	TargetState              interface{}
}

func (*InitiatorTask) isPaymentTask() {}
func (*MediatorTask) isPaymentTask()  {}
func (*TargetTask) isPaymentTask()    {}

// PaymentNetworkState mirrors one deployed token-network registry contract.
//
// The two inner indexes reference the same set of token networks, one keyed
// by the token network contract address, the other by the token contract
// address. Entries are added and removed from both together.
type PaymentNetworkState struct {
	Address common.Address

	TokenIdentifiersToTokenNetworks map[common.Address]*TokenNetworkState
	TokenAddressesToTokenNetworks   map[common.Address]*TokenNetworkState
}

// NewPaymentNetworkState creates the registry state seeded with the given
// token networks.
func NewPaymentNetworkState(address common.Address, tokenNetworks []*TokenNetworkState) *PaymentNetworkState {
	paymentNetwork := &PaymentNetworkState{
		Address:                         address,
		TokenIdentifiersToTokenNetworks: make(map[common.Address]*TokenNetworkState),
		TokenAddressesToTokenNetworks:   make(map[common.Address]*TokenNetworkState),
	}
	for _, tokenNetwork := range tokenNetworks {
		paymentNetwork.TokenIdentifiersToTokenNetworks[tokenNetwork.Address] = tokenNetwork
		paymentNetwork.TokenAddressesToTokenNetworks[tokenNetwork.TokenAddress] = tokenNetwork
	}
	return paymentNetwork
}

// TokenNetworkState mirrors one deployed token network and indexes its
// channels by identifier and by partner.
type TokenNetworkState struct {
	Address      common.Address
	TokenAddress common.Address

	ChannelIdentifiersToChannels map[common.Hash]*ChannelState
	PartnerAddressesToChannels   map[common.Address]*ChannelState
}

// NewTokenNetworkState creates an empty token network state.
func NewTokenNetworkState(address, tokenAddress common.Address) *TokenNetworkState {
	return &TokenNetworkState{
		Address:                      address,
		TokenAddress:                 tokenAddress,
		ChannelIdentifiersToChannels: make(map[common.Hash]*ChannelState),
		PartnerAddressesToChannels:   make(map[common.Address]*ChannelState),
	}
}

// ChannelState is the state of one bilateral payment channel. The reducer
// never inspects it, it is owned by the channel machine and passed through
// as context.
type ChannelState struct {
	Identifier     common.Hash
	TokenAddress   common.Address
	OurAddress     common.Address
	PartnerAddress common.Address
	RevealTimeout  int64
	SettleTimeout  int64
}

// RouteState describes one candidate hop for a mediated transfer.
type RouteState struct {
	NodeAddress       common.Address
	ChannelIdentifier common.Hash
}

// BalanceProofSignedState is a signed claim of the current channel balance
// received from a partner. The reducer forwards it opaquely.
type BalanceProofSignedState struct {
	Nonce             uint64
	TransferredAmount *big.Int
	LocksRoot         common.Hash
	ChannelIdentifier common.Hash
	MessageHash       common.Hash
	Signature         []byte
	Sender            common.Address
}
