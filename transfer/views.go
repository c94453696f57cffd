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

import "github.com/rillnet/rill/common"

// Transfer roles as reported by GetTransferRole.
const (
	RoleInitiator = "initiator"
	RoleMediator  = "mediator"
	RoleTarget    = "target"
)

// GetNetworks resolves both the payment network and the token network for
// the given pair of identifiers. Either result may be nil.
func GetNetworks(nodeState *NodeState, paymentNetworkIdentifier, tokenAddress common.Address) (*PaymentNetworkState, *TokenNetworkState) {
	paymentNetworkState := nodeState.IdentifiersToPaymentNetworks[paymentNetworkIdentifier]
	if paymentNetworkState == nil {
		return nil, nil
	}
	return paymentNetworkState, paymentNetworkState.TokenAddressesToTokenNetworks[tokenAddress]
}

// GetTokenNetwork resolves the token network for the given pair of
// identifiers, nil if absent.
func GetTokenNetwork(nodeState *NodeState, paymentNetworkIdentifier, tokenAddress common.Address) *TokenNetworkState {
	_, tokenNetworkState := GetNetworks(nodeState, paymentNetworkIdentifier, tokenAddress)
	return tokenNetworkState
}

// GetChannelStateByTokenAddress resolves a single channel, nil if any hop
// of the index path is absent.
func GetChannelStateByTokenAddress(nodeState *NodeState, paymentNetworkIdentifier, tokenAddress common.Address, channelIdentifier common.Hash) *ChannelState {
	tokenNetworkState := GetTokenNetwork(nodeState, paymentNetworkIdentifier, tokenAddress)
	if tokenNetworkState == nil {
		return nil
	}
	return tokenNetworkState.ChannelIdentifiersToChannels[channelIdentifier]
}

// GetTransferTask returns the task registered under the secret hash, nil if
// there is none.
func GetTransferTask(nodeState *NodeState, secretHash common.Hash) Task {
	return nodeState.PaymentMapping.SecretHashesToTask[secretHash]
}

// GetTransferRole reports which role this node plays for the transfer
// locked by secretHash. The empty string means no active transfer.
func GetTransferRole(nodeState *NodeState, secretHash common.Hash) string {
	switch GetTransferTask(nodeState, secretHash).(type) {
	case *InitiatorTask:
		return RoleInitiator
	case *MediatorTask:
		return RoleMediator
	case *TargetTask:
		return RoleTarget
	default:
		return ""
	}
}
