package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
)

// GenesisSpec is the on-disk description of the initial ledger state. It can
// be loaded from a JSON file or embedded in the node's TOML config.
type GenesisSpec struct {
	Deployer         string            `json:"deployer" toml:"Deployer"`
	MinimumTipAmount string            `json:"minimumTipAmount" toml:"MinimumTipAmount"`
	FeePercent       uint64            `json:"feePercent" toml:"FeePercent"`
	Moderators       []string          `json:"moderators,omitempty" toml:"Moderators"`
	Alloc            map[string]string `json:"alloc,omitempty" toml:"Alloc"` // addr -> wei
	NonPayable       []string          `json:"nonPayable,omitempty" toml:"NonPayable"`
}

// Allocation credits Amount to Address at genesis.
type Allocation struct {
	Address common.Address
	Amount  *big.Int
}

// Genesis is the validated form of a GenesisSpec.
type Genesis struct {
	Deployer         common.Address
	MinimumTipAmount *big.Int
	FeePercent       uint64
	Moderators       []common.Address
	Alloc            []Allocation
	NonPayable       []common.Address
}

// LoadGenesisSpec reads a JSON genesis file. Unknown fields are rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// Build validates the spec and resolves addresses and amounts. Allocations
// are sorted by address so genesis application is deterministic.
func (s *GenesisSpec) Build() (*Genesis, error) {
	if s == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	deployer, err := ParseAddress(s.Deployer)
	if err != nil {
		return nil, fmt.Errorf("deployer: %w", err)
	}
	minimum, err := parseAmountString(s.MinimumTipAmount)
	if err != nil {
		return nil, fmt.Errorf("minimumTipAmount: %w", err)
	}
	if s.FeePercent < tipping.MinFeePercent || s.FeePercent > tipping.MaxFeePercent {
		return nil, fmt.Errorf("feePercent must be between %d and %d", tipping.MinFeePercent, tipping.MaxFeePercent)
	}
	out := &Genesis{
		Deployer:         deployer,
		MinimumTipAmount: minimum,
		FeePercent:       s.FeePercent,
	}
	for i, raw := range s.Moderators {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("moderators[%d]: %w", i, err)
		}
		out.Moderators = append(out.Moderators, addr)
	}
	for i, raw := range s.NonPayable {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("nonPayable[%d]: %w", i, err)
		}
		out.NonPayable = append(out.NonPayable, addr)
	}
	for rawAddr, rawAmount := range s.Alloc {
		addr, err := ParseAddress(rawAddr)
		if err != nil {
			return nil, fmt.Errorf("alloc %q: %w", rawAddr, err)
		}
		amount, err := parseAmountString(rawAmount)
		if err != nil {
			return nil, fmt.Errorf("alloc %q: %w", rawAddr, err)
		}
		out.Alloc = append(out.Alloc, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(out.Alloc, func(i, j int) bool {
		return bytes.Compare(out.Alloc[i].Address.Bytes(), out.Alloc[j].Address.Bytes()) < 0
	})
	return out, nil
}

// ParseAddress parses a 0x-prefixed 20-byte hex address.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmountString(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
