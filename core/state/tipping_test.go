package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
	"github.com/plebbit/plebbit-tipping-v1/storage"
)

func TestTippingKeyFormats(t *testing.T) {
	if string(TippingParamsKey()) != "tipping/params" {
		t.Fatalf("unexpected params key: %s", TippingParamsKey())
	}
	if string(TippingInitializedKey()) != "tipping/initialized" {
		t.Fatalf("unexpected initialized key: %s", TippingInitializedKey())
	}
	key := common.HexToHash("0xab")
	countKey := TippingTipCountKey(key)
	expectedCount := append(append([]byte("tipping/tips/"), key.Bytes()...), []byte("/count")...)
	if !bytes.Equal(countKey, expectedCount) {
		t.Fatalf("unexpected count key: %x", countKey)
	}
	tipKey := TippingTipKey(key, 258)
	expectedTip := append(append([]byte("tipping/tips/"), key.Bytes()...), '/', 0, 0, 0, 0, 0, 0, 1, 2)
	if !bytes.Equal(tipKey, expectedTip) {
		t.Fatalf("unexpected tip key: %x", tipKey)
	}
	if !bytes.HasPrefix(TippingRecipientTotalKey(key), []byte("tipping/total/recipient/")) {
		t.Fatalf("unexpected recipient total key")
	}
	if !bytes.HasPrefix(TippingSenderTotalKey(key), []byte("tipping/total/sender/")) {
		t.Fatalf("unexpected sender total key")
	}
	if bytes.Equal(TippingRecipientTotalKey(key), TippingSenderTotalKey(key)) {
		t.Fatalf("recipient and sender totals must not share keys")
	}
}

func TestTippingTipListPersists(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	key := common.HexToHash("0x01")

	for i := int64(1); i <= 3; i++ {
		index, err := mgr.TippingTipAppend(key, &tipping.TipRecord{
			Amount:       big.NewInt(i * 10),
			FeeRecipient: common.HexToAddress("0xfe"),
			Sender:       common.HexToAddress("0x5e"),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if index != uint64(i-1) {
			t.Fatalf("unexpected index %d", index)
		}
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reopened := NewManager(db)
	count, err := reopened.TippingTipCount(key)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 tips, got %d (%v)", count, err)
	}
	record, ok, err := reopened.TippingTipAt(key, 1)
	if err != nil || !ok {
		t.Fatalf("tip at 1: ok=%v err=%v", ok, err)
	}
	if record.Amount.Cmp(big.NewInt(20)) != 0 || record.Sender != common.HexToAddress("0x5e") {
		t.Fatalf("unexpected record %+v", record)
	}
	if _, ok, err := reopened.TippingTipAt(key, 3); err != nil || ok {
		t.Fatalf("expected no record past the end, ok=%v err=%v", ok, err)
	}
	if count, _ := reopened.TippingTipCount(common.HexToHash("0x02")); count != 0 {
		t.Fatalf("unknown key should have no tips")
	}
}

func TestTippingParamsAndTotals(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	if _, ok, err := mgr.TippingParams(); err != nil || ok {
		t.Fatalf("expected no params, ok=%v err=%v", ok, err)
	}
	initialized, err := mgr.TippingInitialized()
	if err != nil || initialized {
		t.Fatalf("expected uninitialized ledger")
	}
	if err := mgr.TippingParamsPut(&tipping.Params{MinimumTipAmount: big.NewInt(0), FeePercent: 20}); err != nil {
		t.Fatalf("put params: %v", err)
	}
	if err := mgr.TippingMarkInitialized(); err != nil {
		t.Fatalf("mark initialized: %v", err)
	}
	params, ok, err := mgr.TippingParams()
	if err != nil || !ok {
		t.Fatalf("params: ok=%v err=%v", ok, err)
	}
	if params.MinimumTipAmount.Sign() != 0 || params.FeePercent != 20 {
		t.Fatalf("unexpected params %+v", params)
	}
	if initialized, _ := mgr.TippingInitialized(); !initialized {
		t.Fatalf("expected initialized ledger")
	}

	key := common.HexToHash("0x07")
	total, err := mgr.TippingRecipientTotal(key)
	if err != nil || total.Sign() != 0 {
		t.Fatalf("expected zero total, got %v (%v)", total, err)
	}
	if err := mgr.TippingRecipientTotalPut(key, big.NewInt(99)); err != nil {
		t.Fatalf("put total: %v", err)
	}
	if total, _ := mgr.TippingRecipientTotal(key); total.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("unexpected recipient total %s", total)
	}
	if total, _ := mgr.TippingSenderTotal(key); total.Sign() != 0 {
		t.Fatalf("sender total must be independent, got %s", total)
	}
	if err := mgr.TippingSenderTotalPut(key, big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative total to be rejected")
	}
}
