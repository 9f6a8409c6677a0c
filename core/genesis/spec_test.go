package genesis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func writeSpec(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func TestLoadGenesisSpecAndBuild(t *testing.T) {
	path := writeSpec(t, GenesisSpec{
		Deployer:         "0x00000000000000000000000000000000000000d0",
		MinimumTipAmount: "1000",
		FeePercent:       5,
		Moderators:       []string{"0x00000000000000000000000000000000000000a1"},
		Alloc: map[string]string{
			"0x00000000000000000000000000000000000000b2": "20",
			"0x00000000000000000000000000000000000000b1": "10",
		},
		NonPayable: []string{"0x00000000000000000000000000000000000000c1"},
	})
	spec, err := LoadGenesisSpec(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gen, err := spec.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if gen.Deployer != common.HexToAddress("0xd0") || gen.FeePercent != 5 {
		t.Fatalf("unexpected genesis %+v", gen)
	}
	if gen.MinimumTipAmount.Int64() != 1000 {
		t.Fatalf("unexpected minimum %s", gen.MinimumTipAmount)
	}
	if len(gen.Alloc) != 2 || gen.Alloc[0].Address != common.HexToAddress("0xb1") || gen.Alloc[1].Amount.Int64() != 20 {
		t.Fatalf("allocations should be sorted by address: %+v", gen.Alloc)
	}
	if len(gen.Moderators) != 1 || len(gen.NonPayable) != 1 {
		t.Fatalf("unexpected role lists %+v", gen)
	}
}

func TestLoadGenesisSpecRejectsUnknownFields(t *testing.T) {
	path := writeSpec(t, map[string]any{"deployer": "0x00000000000000000000000000000000000000d0", "chainId": 1})
	if _, err := LoadGenesisSpec(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestBuildValidation(t *testing.T) {
	base := GenesisSpec{Deployer: "0x00000000000000000000000000000000000000d0", FeePercent: 1}
	if _, err := base.Build(); err != nil {
		t.Fatalf("minimal spec should build: %v", err)
	}
	cases := map[string]GenesisSpec{
		"fee zero":      {Deployer: base.Deployer, FeePercent: 0},
		"fee too high":  {Deployer: base.Deployer, FeePercent: 21},
		"bad deployer":  {Deployer: "nhb1xyz", FeePercent: 5},
		"bad minimum":   {Deployer: base.Deployer, FeePercent: 5, MinimumTipAmount: "-1"},
		"bad alloc":     {Deployer: base.Deployer, FeePercent: 5, Alloc: map[string]string{"0x01": "1"}},
		"bad moderator": {Deployer: base.Deployer, FeePercent: 5, Moderators: []string{"zzz"}},
	}
	for name, spec := range cases {
		if _, err := spec.Build(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
