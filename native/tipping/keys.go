package tipping

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var senderKeyArgs = func() abi.Arguments {
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		panic(err)
	}
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Type: bytes32Ty},
		{Type: addressTy},
		{Type: bytes32Ty},
		{Type: addressTy},
	}
}()

// DeriveRecipientKey indexes TipList and RecipientTotal. The two fields are
// tightly packed (32 + 20 bytes) before hashing.
func DeriveRecipientKey(recipientCommentCID common.Hash, feeRecipient common.Address) common.Hash {
	return crypto.Keccak256Hash(recipientCommentCID.Bytes(), feeRecipient.Bytes())
}

// DeriveSenderKey indexes SenderTotal. The four fields use padded ABI encoding
// (4 x 32 bytes) so field boundaries cannot shift between inputs.
func DeriveSenderKey(senderCommentCID common.Hash, sender common.Address, recipientCommentCID common.Hash, feeRecipient common.Address) common.Hash {
	packed, err := senderKeyArgs.Pack(
		[32]byte(senderCommentCID),
		sender,
		[32]byte(recipientCommentCID),
		feeRecipient,
	)
	if err != nil {
		// Static types with fixed-size values cannot fail to pack.
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}
