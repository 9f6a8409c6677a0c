package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tippingParamsKeyBytes      = []byte("tipping/params")
	tippingInitializedKeyBytes = []byte("tipping/initialized")
	tippingTipsPrefix          = []byte("tipping/tips/")
	tippingRecipientPrefix     = []byte("tipping/total/recipient/")
	tippingSenderPrefix        = []byte("tipping/total/sender/")
)

// TippingParamsKey stores the ledger configuration.
func TippingParamsKey() []byte { return append([]byte(nil), tippingParamsKeyBytes...) }

// TippingInitializedKey marks that the ledger configuration was initialised.
func TippingInitializedKey() []byte { return append([]byte(nil), tippingInitializedKeyBytes...) }

// TippingTipCountKey stores the number of tips recorded under key.
func TippingTipCountKey(key common.Hash) []byte {
	buf := make([]byte, 0, len(tippingTipsPrefix)+common.HashLength+len("/count"))
	buf = append(buf, tippingTipsPrefix...)
	buf = append(buf, key.Bytes()...)
	return append(buf, "/count"...)
}

// TippingTipKey stores the tip at index under key. The index is big-endian so
// the records of one key sort in insertion order.
func TippingTipKey(key common.Hash, index uint64) []byte {
	buf := make([]byte, 0, len(tippingTipsPrefix)+common.HashLength+1+8)
	buf = append(buf, tippingTipsPrefix...)
	buf = append(buf, key.Bytes()...)
	buf = append(buf, '/')
	return binary.BigEndian.AppendUint64(buf, index)
}

// TippingRecipientTotalKey stores the running total of a recipient key.
func TippingRecipientTotalKey(key common.Hash) []byte {
	return append(append([]byte(nil), tippingRecipientPrefix...), key.Bytes()...)
}

// TippingSenderTotalKey stores the running total of a sender key.
func TippingSenderTotalKey(key common.Hash) []byte {
	return append(append([]byte(nil), tippingSenderPrefix...), key.Bytes()...)
}
