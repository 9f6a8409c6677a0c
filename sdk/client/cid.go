package client

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CommentCID converts a content identifier string into the 32 byte comment
// identifier stored by the ledger: the keccak256 hash of the CID's multihash
// digest. The empty string maps to the zero identifier, meaning "no comment".
func CommentCID(s string) (common.Hash, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return common.Hash{}, nil
	}
	parsed, err := cid.Decode(trimmed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("client: parse cid %q: %w", trimmed, err)
	}
	decoded, err := multihash.Decode(parsed.Hash())
	if err != nil {
		return common.Hash{}, fmt.Errorf("client: decode multihash of %q: %w", trimmed, err)
	}
	return crypto.Keccak256Hash(decoded.Digest), nil
}
