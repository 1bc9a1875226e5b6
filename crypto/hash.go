package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"shadowbridge/core/types"
)

// Keccak256 hashes the concatenation of the inputs with legacy Keccak-256
// padding. This is the digest HTLC identifiers are derived with; it is not
// interchangeable with NIST SHA3-256.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}

// Keccak256Hash is Keccak256 returning a typed 32-byte hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(ethcrypto.Keccak256(data...))
}

// PreimageHash derives the HTLC identifier for a 32-byte preimage.
func PreimageHash(x types.Hash) types.Hash {
	return Keccak256Hash(x[:])
}

// ModuleAddress derives a deterministic account identity for a named internal
// module (token ledger, quota ledger, bridge escrow). Module accounts never
// correspond to a key pair; they exist so authorization checks and balance
// bookkeeping can treat modules like any other participant.
func ModuleAddress(name string) types.Address {
	digest := ethcrypto.Keccak256([]byte("shadowbridge/module/" + name))
	return types.BytesToAddress(digest[12:])
}
