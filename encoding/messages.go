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

// Package encoding defines the protocol messages exchanged between rill
// nodes. Wire parsing and signature handling live in the transport, a
// message reaching the handlers is decoded and carries the recovered
// sender.
package encoding

import (
	"math/big"

	"github.com/rillnet/rill/common"
)

// Command ids of the protocol messages.
const (
	ProcessedCmdID        = 0
	PingCmdID             = 1
	PongCmdID             = 2
	SecretRequestCmdID    = 3
	SecretCmdID           = 4
	DirectTransferCmdID   = 5
	MediatedTransferCmdID = 7
	RefundTransferCmdID   = 8
	RevealSecretCmdID     = 11
)

// Message is any decoded protocol message.
type Message interface {
	Cmd() int
	GetSender() common.Address
}

// CmdStruct is embedded by every message.
type CmdStruct struct {
	CmdID  int
	Sender common.Address
}

func (c *CmdStruct) Cmd() int { return c.CmdID }

func (c *CmdStruct) GetSender() common.Address { return c.Sender }

// EnvelopeMessage is embedded by messages that update the channel balance
// proof. The signature covers the balance fields.
type EnvelopeMessage struct {
	CmdStruct
	Nonce             uint64
	ChannelIdentifier common.Hash
	TransferredAmount *big.Int
	LocksRoot         common.Hash
	MessageHash       common.Hash
	Signature         []byte
}

// SecretRequest asks the initiator to reveal the secret for a pending
// transfer.
type SecretRequest struct {
	CmdStruct
	MessageIdentifier uint64
	PaymentIdentifier uint64
	SecretHash        common.Hash
	Amount            *big.Int
}

// NewSecretRequest creates a SecretRequest message.
func NewSecretRequest(messageIdentifier, paymentIdentifier uint64, secretHash common.Hash, amount *big.Int) *SecretRequest {
	return &SecretRequest{
		CmdStruct:         CmdStruct{CmdID: SecretRequestCmdID},
		MessageIdentifier: messageIdentifier,
		PaymentIdentifier: paymentIdentifier,
		SecretHash:        secretHash,
		Amount:            amount,
	}
}

// RevealSecret publishes a transfer secret to a peer.
type RevealSecret struct {
	CmdStruct
	MessageIdentifier uint64
	LockSecret        common.Hash
}

// NewRevealSecret creates a RevealSecret message.
func NewRevealSecret(messageIdentifier uint64, lockSecret common.Hash) *RevealSecret {
	return &RevealSecret{
		CmdStruct:         CmdStruct{CmdID: RevealSecretCmdID},
		MessageIdentifier: messageIdentifier,
		LockSecret:        lockSecret,
	}
}

// Secret removes a lock whose secret is known, moving its amount into the
// transferred amount of the balance proof.
type Secret struct {
	EnvelopeMessage
	MessageIdentifier uint64
	PaymentIdentifier uint64
	LockSecret        common.Hash
}

// NewSecret creates a Secret message.
func NewSecret(messageIdentifier, paymentIdentifier uint64, lockSecret common.Hash) *Secret {
	msg := &Secret{
		MessageIdentifier: messageIdentifier,
		PaymentIdentifier: paymentIdentifier,
		LockSecret:        lockSecret,
	}
	msg.CmdID = SecretCmdID
	return msg
}

// DirectTransfer pays a partner over an open channel without mediation.
type DirectTransfer struct {
	EnvelopeMessage
	MessageIdentifier uint64
	PaymentIdentifier uint64
	Token             common.Address
	Recipient         common.Address
}

// NewDirectTransfer creates a DirectTransfer message.
func NewDirectTransfer(messageIdentifier, paymentIdentifier uint64, token, recipient common.Address) *DirectTransfer {
	msg := &DirectTransfer{
		MessageIdentifier: messageIdentifier,
		PaymentIdentifier: paymentIdentifier,
		Token:             token,
		Recipient:         recipient,
	}
	msg.CmdID = DirectTransferCmdID
	return msg
}

// MediatedTransfer reserves a lock with a partner, asking it to forward
// the payment towards Target.
type MediatedTransfer struct {
	EnvelopeMessage
	MessageIdentifier uint64
	PaymentIdentifier uint64
	Token             common.Address
	Recipient         common.Address
	Target            common.Address
	Initiator         common.Address
	LockAmount        *big.Int
	LockExpiration    int64
	LockSecretHash    common.Hash
}

// NewMediatedTransfer creates a MediatedTransfer message.
func NewMediatedTransfer(messageIdentifier, paymentIdentifier uint64, token, recipient, target, initiator common.Address,
	lockAmount *big.Int, lockExpiration int64, lockSecretHash common.Hash) *MediatedTransfer {
	msg := &MediatedTransfer{
		MessageIdentifier: messageIdentifier,
		PaymentIdentifier: paymentIdentifier,
		Token:             token,
		Recipient:         recipient,
		Target:            target,
		Initiator:         initiator,
		LockAmount:        lockAmount,
		LockExpiration:    lockExpiration,
		LockSecretHash:    lockSecretHash,
	}
	msg.CmdID = MediatedTransferCmdID
	return msg
}

// RefundTransfer sends a lock back to the payer when the mediator cannot
// make progress on any route. It is a MediatedTransfer in the opposite
// direction.
type RefundTransfer struct {
	MediatedTransfer
}

// NewRefundTransfer creates a RefundTransfer message.
func NewRefundTransfer(messageIdentifier, paymentIdentifier uint64, token, recipient, target, initiator common.Address,
	lockAmount *big.Int, lockExpiration int64, lockSecretHash common.Hash) *RefundTransfer {
	msg := &RefundTransfer{
		MediatedTransfer: *NewMediatedTransfer(messageIdentifier, paymentIdentifier, token, recipient, target, initiator,
			lockAmount, lockExpiration, lockSecretHash),
	}
	msg.CmdID = RefundTransferCmdID
	return msg
}
