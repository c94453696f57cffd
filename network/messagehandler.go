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

// Package network translates received protocol messages into state changes
// and submits them to the node.
package network

import (
	"encoding/binary"
	"math/big"

	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/encoding"
	"github.com/rillnet/rill/log"
	"github.com/rillnet/rill/transfer"
	"github.com/rillnet/rill/utils"
)

var logger = log.NewModuleLogger(log.Network)

// NodeBackend is the slice of the node service the message handler needs.
type NodeBackend interface {
	Address() common.Address
	RegistryAddress() common.Address
	StateFromNode() *transfer.NodeState
	HandleStateChange(stateChange transfer.StateChange) ([]transfer.Event, error)

	// TargetMediatedTransfer and MediateMediatedTransfer build the init
	// state change for a locked transfer this node terminates respectively
	// forwards.
	TargetMediatedTransfer(message *encoding.MediatedTransfer)
	MediateMediatedTransfer(message *encoding.MediatedTransfer)
}

// RoutesProvider is the routing oracle computing candidate paths for a
// payment.
type RoutesProvider interface {
	GetBestRoutes(nodeState *transfer.NodeState, paymentNetworkIdentifier, tokenAddress,
		fromAddress, toAddress common.Address, amount *big.Int, previousAddress common.Address) []transfer.RouteState
}

// MessageHandler is the intake adapter feeding received messages into the
// state machine. Messages already seen are dropped by their echo hash.
type MessageHandler struct {
	backend NodeBackend
	routing RoutesProvider
	visited common.Cache
}

// NewMessageHandler creates the intake adapter.
func NewMessageHandler(backend NodeBackend, routing RoutesProvider) *MessageHandler {
	visited, err := common.NewCache(common.LRUConfig{CacheSize: 1024})
	if err != nil {
		logger.Crit("Failed to allocate the message dedup cache", "err", err)
	}
	return &MessageHandler{
		backend: backend,
		routing: routing,
		visited: visited,
	}
}

// echoHash identifies one message delivery for de-duplication.
func echoHash(message encoding.Message) common.Hash {
	var messageIdentifier uint64
	switch message := message.(type) {
	case *encoding.SecretRequest:
		messageIdentifier = message.MessageIdentifier
	case *encoding.RevealSecret:
		messageIdentifier = message.MessageIdentifier
	case *encoding.Secret:
		messageIdentifier = message.MessageIdentifier
	case *encoding.DirectTransfer:
		messageIdentifier = message.MessageIdentifier
	case *encoding.RefundTransfer:
		messageIdentifier = message.MessageIdentifier
	case *encoding.MediatedTransfer:
		messageIdentifier = message.MessageIdentifier
	}

	buf := make([]byte, common.AddressLength+9)
	copy(buf, message.GetSender().Bytes())
	buf[common.AddressLength] = byte(message.Cmd())
	binary.BigEndian.PutUint64(buf[common.AddressLength+1:], messageIdentifier)
	return utils.ShaSecret(buf)
}

// OnMessage routes one received message. Unknown commands are logged and
// dropped.
func (mh *MessageHandler) OnMessage(message encoding.Message) {
	hash := echoHash(message)
	if mh.visited.Contains(hash) {
		logger.Debug("Duplicate message dropped", "cmdid", message.Cmd(), "sender", message.GetSender())
		return
	}
	mh.visited.Add(hash, struct{}{})

	switch message := message.(type) {
	case *encoding.SecretRequest:
		mh.handleSecretRequest(message)
	case *encoding.RevealSecret:
		mh.handleRevealSecret(message)
	case *encoding.Secret:
		mh.handleSecret(message)
	case *encoding.DirectTransfer:
		mh.handleDirectTransfer(message)
	case *encoding.RefundTransfer:
		// RefundTransfer must be matched before MediatedTransfer, a
		// RefundTransfer is also a MediatedTransfer.
		mh.handleRefundTransfer(message)
	case *encoding.MediatedTransfer:
		mh.handleMediatedTransfer(message)
	default:
		// Processed and Ping messages are consumed by the transport.
		logger.Error("Unknown message cmdid", "cmdid", message.Cmd(), "sender", message.GetSender())
	}
}

func (mh *MessageHandler) handleSecretRequest(message *encoding.SecretRequest) {
	stateChange := &transfer.ReceiveSecretRequest{
		PaymentIdentifier: message.PaymentIdentifier,
		Amount:            message.Amount,
		SecretHash:        message.SecretHash,
		Sender:            message.Sender,
	}
	mh.submit(stateChange)
}

func (mh *MessageHandler) handleRevealSecret(message *encoding.RevealSecret) {
	mh.submit(transfer.NewReceiveSecretReveal(message.LockSecret, message.Sender))
}

func (mh *MessageHandler) handleSecret(message *encoding.Secret) {
	balanceProof := balanceProofFromEnvelope(&message.EnvelopeMessage)
	mh.submit(transfer.NewReceiveUnlock(message.LockSecret, balanceProof))
}

func (mh *MessageHandler) handleDirectTransfer(message *encoding.DirectTransfer) {
	stateChange := &transfer.ReceiveTransferDirect{
		PaymentNetworkIdentifier: mh.backend.RegistryAddress(),
		TokenAddress:             message.Token,
		PaymentIdentifier:        message.PaymentIdentifier,
		BalanceProof:             balanceProofFromEnvelope(&message.EnvelopeMessage),
	}
	mh.submit(stateChange)
}

// handleRefundTransfer resolves the ambiguity of a refund: for a payment
// this node initiated, the refund cancels the used route and retries with a
// fresh secret, otherwise it is handed to the mediator task.
func (mh *MessageHandler) handleRefundTransfer(message *encoding.RefundTransfer) {
	fromTransfer := LockedTransferSignedFromMessage(&message.MediatedTransfer)
	nodeState := mh.backend.StateFromNode()

	var stateChange transfer.StateChange
	if transfer.GetTransferRole(nodeState, fromTransfer.Lock.SecretHash) == transfer.RoleInitiator {
		routes := mh.routing.GetBestRoutes(
			nodeState,
			mh.backend.RegistryAddress(),
			fromTransfer.Token,
			mh.backend.Address(),
			fromTransfer.Target,
			fromTransfer.Lock.Amount,
			message.Sender,
		)
		stateChange = &transfer.ReceiveTransferRefundCancelRoute{
			Sender:   message.Sender,
			Routes:   routes,
			Transfer: fromTransfer,
			Secret:   utils.RandomSecret(),
		}
	} else {
		stateChange = &transfer.ReceiveTransferRefund{
			Sender:   message.Sender,
			Transfer: fromTransfer,
		}
	}

	mh.submit(stateChange)
}

func (mh *MessageHandler) handleMediatedTransfer(message *encoding.MediatedTransfer) {
	if message.Target == mh.backend.Address() {
		mh.backend.TargetMediatedTransfer(message)
	} else {
		mh.backend.MediateMediatedTransfer(message)
	}
}

func (mh *MessageHandler) submit(stateChange transfer.StateChange) {
	if _, err := mh.backend.HandleStateChange(stateChange); err != nil {
		logger.Error("State change failed", "stateChange", stateChange, "err", err)
	}
}

// balanceProofFromEnvelope lifts the signed balance fields out of an
// envelope message.
func balanceProofFromEnvelope(envelope *encoding.EnvelopeMessage) *transfer.BalanceProofSignedState {
	return &transfer.BalanceProofSignedState{
		Nonce:             envelope.Nonce,
		TransferredAmount: envelope.TransferredAmount,
		LocksRoot:         envelope.LocksRoot,
		ChannelIdentifier: envelope.ChannelIdentifier,
		MessageHash:       envelope.MessageHash,
		Signature:         common.CopyBytes(envelope.Signature),
		Sender:            envelope.Sender,
	}
}

// LockedTransferSignedFromMessage converts a received locked transfer into
// its state representation.
func LockedTransferSignedFromMessage(message *encoding.MediatedTransfer) *transfer.LockedTransferSignedState {
	return &transfer.LockedTransferSignedState{
		MessageIdentifier: message.MessageIdentifier,
		PaymentIdentifier: message.PaymentIdentifier,
		Token:             message.Token,
		BalanceProof:      balanceProofFromEnvelope(&message.EnvelopeMessage),
		Lock: &transfer.HashTimeLockState{
			Amount:     message.LockAmount,
			Expiration: message.LockExpiration,
			SecretHash: message.LockSecretHash,
		},
		Initiator: message.Initiator,
		Target:    message.Target,
	}
}
