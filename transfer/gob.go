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
	"encoding/gob"

	"github.com/rillnet/rill/common"
)

// State changes and tasks cross the persistence boundary as interface
// values, every variant must be registered.
func init() {
	gob.Register(&Block{})
	gob.Register(&ActionInitNode{})
	gob.Register(&ActionNewTokenNetwork{})
	gob.Register(&ActionChannelClose{})
	gob.Register(&ActionChangeNodeNetworkState{})
	gob.Register(&ActionLeaveAllNetworks{})
	gob.Register(&ActionTransferDirect{})
	gob.Register(&ReceiveTransferDirect{})
	gob.Register(&ReceiveUnlock{})
	gob.Register(&ContractReceiveNewPaymentNetwork{})
	gob.Register(&ContractReceiveNewTokenNetwork{})
	gob.Register(&ContractReceiveChannelNew{})
	gob.Register(&ContractReceiveChannelNewBalance{})
	gob.Register(&ContractReceiveChannelClosed{})
	gob.Register(&ContractReceiveChannelSettled{})
	gob.Register(&ContractReceiveChannelWithdraw{})
	gob.Register(&ContractReceiveRouteNew{})

	gob.Register(&ActionInitInitiator{})
	gob.Register(&ActionInitMediator{})
	gob.Register(&ActionInitTarget{})
	gob.Register(&ReceiveSecretRequest{})
	gob.Register(&ReceiveSecretReveal{})
	gob.Register(&ReceiveTransferRefund{})
	gob.Register(&ReceiveTransferRefundCancelRoute{})

	gob.Register(&InitiatorTask{})
	gob.Register(&MediatorTask{})
	gob.Register(&TargetTask{})
}

// The inner indexes of PaymentNetworkState and TokenNetworkState alias the
// same objects. Gob flattens aliases into copies, so both types serialize
// the underlying set once and rebuild their indexes on decode.

type paymentNetworkStateExt struct {
	Address       common.Address
	TokenNetworks []*TokenNetworkState
}

// GobEncode implements gob.GobEncoder.
func (pns *PaymentNetworkState) GobEncode() ([]byte, error) {
	ext := paymentNetworkStateExt{
		Address:       pns.Address,
		TokenNetworks: sortedTokenNetworks(pns),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&ext); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (pns *PaymentNetworkState) GobDecode(data []byte) error {
	var ext paymentNetworkStateExt
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ext); err != nil {
		return err
	}
	*pns = *NewPaymentNetworkState(ext.Address, ext.TokenNetworks)
	return nil
}

type tokenNetworkStateExt struct {
	Address      common.Address
	TokenAddress common.Address
	Channels     []*ChannelState
}

// GobEncode implements gob.GobEncoder.
func (tns *TokenNetworkState) GobEncode() ([]byte, error) {
	ext := tokenNetworkStateExt{
		Address:      tns.Address,
		TokenAddress: tns.TokenAddress,
		Channels:     sortedChannels(tns.ChannelIdentifiersToChannels),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&ext); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (tns *TokenNetworkState) GobDecode(data []byte) error {
	var ext tokenNetworkStateExt
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ext); err != nil {
		return err
	}
	restored := NewTokenNetworkState(ext.Address, ext.TokenAddress)
	for _, channelState := range ext.Channels {
		restored.ChannelIdentifiersToChannels[channelState.Identifier] = channelState
		restored.PartnerAddressesToChannels[channelState.PartnerAddress] = channelState
	}
	*tns = *restored
	return nil
}
