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

// HashTimeLockState is the lock of a mediated transfer.
type HashTimeLockState struct {
	Amount     *big.Int
	Expiration int64
	SecretHash common.Hash
}

// TransferDescriptionWithSecretState describes a payment this node starts.
// It carries the secret, so it must never leave the node.
type TransferDescriptionWithSecretState struct {
	PaymentNetworkIdentifier common.Address
	PaymentIdentifier        uint64
	Amount                   *big.Int
	Token                    common.Address
	Initiator                common.Address
	Target                   common.Address
	Secret                   common.Hash
	SecretHash               common.Hash
}

// NewTransferDescriptionWithSecretState derives the secret hash from the
// secret.
func NewTransferDescriptionWithSecretState(paymentNetworkIdentifier common.Address, paymentIdentifier uint64,
	amount *big.Int, token, initiator, target common.Address, secret common.Hash) *TransferDescriptionWithSecretState {
	return &TransferDescriptionWithSecretState{
		PaymentNetworkIdentifier: paymentNetworkIdentifier,
		PaymentIdentifier:        paymentIdentifier,
		Amount:                   amount,
		Token:                    token,
		Initiator:                initiator,
		Target:                   target,
		Secret:                   secret,
		SecretHash:               utils.ShaSecret(secret.Bytes()),
	}
}

// LockedTransferSignedState is a locked transfer received from a peer
// together with the balance proof covering it.
type LockedTransferSignedState struct {
	MessageIdentifier uint64
	PaymentIdentifier uint64
	Token             common.Address
	BalanceProof      *BalanceProofSignedState
	Lock              *HashTimeLockState
	Initiator         common.Address
	Target            common.Address
}

// ActionInitInitiator starts a mediated transfer. The init state changes
// carry all the data required to make progress, there is no event for
// requesting more.
type ActionInitInitiator struct {
	PaymentNetworkIdentifier common.Address
	Transfer                 *TransferDescriptionWithSecretState
	Routes                   []RouteState
}

// ActionInitMediator starts mediating a transfer received from a peer.
type ActionInitMediator struct {
	PaymentNetworkIdentifier common.Address
	Routes                   []RouteState
	FromRoute                RouteState
	FromTransfer             *LockedTransferSignedState
}

// ActionInitTarget accepts a transfer this node is the final target of.
type ActionInitTarget struct {
	PaymentNetworkIdentifier common.Address
	FromRoute                RouteState
	Transfer                 *LockedTransferSignedState
}

// ReceiveSecretRequest is the target asking the initiator to reveal the
// secret.
type ReceiveSecretRequest struct {
	PaymentIdentifier uint64
	Amount            *big.Int
	SecretHash        common.Hash
	Sender            common.Address
}

// ReceiveSecretReveal is a revealed secret received off chain.
type ReceiveSecretReveal struct {
	Secret     common.Hash
	SecretHash common.Hash
	Sender     common.Address
}

// NewReceiveSecretReveal derives the secret hash from the revealed secret.
func NewReceiveSecretReveal(secret common.Hash, sender common.Address) *ReceiveSecretReveal {
	return &ReceiveSecretReveal{
		Secret:     secret,
		SecretHash: utils.ShaSecret(secret.Bytes()),
		Sender:     sender,
	}
}

// ReceiveTransferRefund is a refund received while this node mediates the
// refunded transfer.
type ReceiveTransferRefund struct {
	Sender   common.Address
	Transfer *LockedTransferSignedState
}

// ReceiveTransferRefundCancelRoute is a refund received for a transfer this
// node initiated. It carries a fresh route set and a fresh secret so the
// payment can be retried over a different path.
type ReceiveTransferRefundCancelRoute struct {
	Sender   common.Address
	Routes   []RouteState
	Transfer *LockedTransferSignedState
	Secret   common.Hash
}
