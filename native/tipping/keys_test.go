package tipping

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestDeriveRecipientKeyIsPacked(t *testing.T) {
	c := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	fee := common.HexToAddress("0x2222222222222222222222222222222222222222")
	packed := append(append([]byte{}, c.Bytes()...), fee.Bytes()...)
	if len(packed) != 52 {
		t.Fatalf("packed length %d", len(packed))
	}
	if got, want := DeriveRecipientKey(c, fee), crypto.Keccak256Hash(packed); got != want {
		t.Fatalf("recipient key %s, want %s", got.Hex(), want.Hex())
	}
	if DeriveRecipientKey(c, fee) != DeriveRecipientKey(c, fee) {
		t.Fatalf("derivation must be deterministic")
	}
	if DeriveRecipientKey(c, fee) == DeriveRecipientKey(c, common.Address{}) {
		t.Fatalf("different fee recipients must not collide")
	}
}

func TestDeriveSenderKeyIsPadded(t *testing.T) {
	senderCID := common.HexToHash("0x01")
	sender := common.HexToAddress("0x0a")
	recipientCID := common.HexToHash("0x02")
	fee := common.HexToAddress("0x0b")

	var encoded []byte
	encoded = append(encoded, senderCID.Bytes()...)
	encoded = append(encoded, common.LeftPadBytes(sender.Bytes(), 32)...)
	encoded = append(encoded, recipientCID.Bytes()...)
	encoded = append(encoded, common.LeftPadBytes(fee.Bytes(), 32)...)
	if len(encoded) != 128 {
		t.Fatalf("encoded length %d", len(encoded))
	}
	if got, want := DeriveSenderKey(senderCID, sender, recipientCID, fee), crypto.Keccak256Hash(encoded); got != want {
		t.Fatalf("sender key %s, want %s", got.Hex(), want.Hex())
	}
	packed := bytes.Join([][]byte{senderCID.Bytes(), sender.Bytes(), recipientCID.Bytes(), fee.Bytes()}, nil)
	if DeriveSenderKey(senderCID, sender, recipientCID, fee) == crypto.Keccak256Hash(packed) {
		t.Fatalf("sender key must not use tight packing")
	}
}
