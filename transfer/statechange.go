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
	"github.com/rillnet/rill/utils"
)

// Block is applied on every new confirmed chain head. Expired locks and
// timeouts are driven exclusively by these.
type Block struct {
	BlockNumber int64
}

// ActionInitNode resets the node to an empty aggregate.
type ActionInitNode struct {
	PRG         *PRG
	BlockNumber int64
}

// ActionNewTokenNetwork attaches a token network the user asked to connect
// to.
type ActionNewTokenNetwork struct {
	PaymentNetworkIdentifier common.Address
	TokenNetwork             *TokenNetworkState
}

// ActionChannelClose is the user request to close a channel.
type ActionChannelClose struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelIdentifier        common.Hash
}

// ActionChangeNodeNetworkState records a reachability change for a peer.
type ActionChangeNodeNetworkState struct {
	NodeAddress  common.Address
	NetworkState NodeNetworkState
}

// ActionLeaveAllNetworks is the user request to close every open channel.
type ActionLeaveAllNetworks struct{}

// ActionTransferDirect is the user request to pay a partner over an open
// channel without mediation.
type ActionTransferDirect struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ReceiverAddress          common.Address
	PaymentIdentifier        uint64
	Amount                   *big.Int
}

// ReceiveTransferDirect is a direct transfer received from a partner.
type ReceiveTransferDirect struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	PaymentIdentifier        uint64
	BalanceProof             *BalanceProofSignedState
}

// ReceiveUnlock is an unlock message removing a known lock from the
// partner's balance proof.
type ReceiveUnlock struct {
	Secret       common.Hash
	SecretHash   common.Hash
	BalanceProof *BalanceProofSignedState
}

// NewReceiveUnlock derives the secret hash from the revealed secret.
func NewReceiveUnlock(secret common.Hash, balanceProof *BalanceProofSignedState) *ReceiveUnlock {
	return &ReceiveUnlock{
		Secret:       secret,
		SecretHash:   utils.ShaSecret(secret.Bytes()),
		BalanceProof: balanceProof,
	}
}

// ContractReceiveNewPaymentNetwork is emitted when a payment network
// registry the node watches appears on chain.
type ContractReceiveNewPaymentNetwork struct {
	PaymentNetwork *PaymentNetworkState
}

// ContractReceiveNewTokenNetwork is emitted when a token is registered with
// a watched payment network.
type ContractReceiveNewTokenNetwork struct {
	PaymentNetworkIdentifier common.Address
	TokenNetwork             *TokenNetworkState
}

// ContractReceiveChannelNew is emitted when a channel involving this node
// is opened on chain.
type ContractReceiveChannelNew struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelState             *ChannelState
	ChannelIdentifier        common.Hash
}

// ContractReceiveChannelNewBalance is emitted on a confirmed channel
// deposit.
type ContractReceiveChannelNewBalance struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelIdentifier        common.Hash
	ParticipantAddress       common.Address
	ContractBalance          *big.Int
	DepositBlockNumber       int64
}

// ContractReceiveChannelClosed is emitted when a channel is closed on
// chain.
type ContractReceiveChannelClosed struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelIdentifier        common.Hash
	ClosingAddress           common.Address
	ClosedBlockNumber        int64
}

// ContractReceiveChannelSettled is emitted when a closed channel is
// settled on chain.
type ContractReceiveChannelSettled struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelIdentifier        common.Hash
	SettledBlockNumber       int64
}

// ContractReceiveChannelWithdraw is emitted when a lock is withdrawn on
// chain, revealing its secret.
type ContractReceiveChannelWithdraw struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelIdentifier        common.Hash
	Participant              common.Address
	Secret                   common.Hash
	SecretHash               common.Hash
}

// ContractReceiveRouteNew is emitted when a channel between two other
// nodes is opened, extending the known routing graph.
type ContractReceiveRouteNew struct {
	PaymentNetworkIdentifier common.Address
	TokenAddress             common.Address
	ChannelIdentifier        common.Hash
	Participant1             common.Address
	Participant2             common.Address
}
