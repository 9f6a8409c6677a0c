package state

import (
	"math/big"
	"testing"

	"github.com/plebbit/plebbit-tipping-v1/storage"
)

type kvRecord struct {
	Name  string
	Value *big.Int
}

func TestKVRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	var missing kvRecord
	ok, err := mgr.KVGet([]byte("missing"), &missing)
	if err != nil {
		t.Fatalf("kv get missing: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key")
	}

	if err := mgr.KVPut([]byte("genesis/meta"), kvRecord{Name: "alloc", Value: big.NewInt(9)}); err != nil {
		t.Fatalf("kv put: %v", err)
	}
	var got kvRecord
	ok, err = mgr.KVGet([]byte("genesis/meta"), &got)
	if err != nil || !ok {
		t.Fatalf("kv get: ok=%v err=%v", ok, err)
	}
	if got.Name != "alloc" || got.Value.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("unexpected record %+v", got)
	}

	exists, err := mgr.KVGet([]byte("genesis/meta"), nil)
	if err != nil || !exists {
		t.Fatalf("kv existence check: ok=%v err=%v", exists, err)
	}
	if _, err := mgr.KVGet(nil, &got); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := mgr.KVGet([]byte("genesis/meta"), got); err == nil {
		t.Fatalf("expected error for non-pointer destination")
	}
}
