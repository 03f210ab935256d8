package certanchor

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// GetHash returns the keccak256 digest used for signing material.
func GetHash(data []byte) []byte {
	return crypto.Keccak256(data)
}

// SignBytes signs data with a hex-encoded secp256k1 private key.
func SignBytes(data []byte, privHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return crypto.Sign(crypto.Keccak256(data), key)
}

// VerifySignature checks that signature over data recovers to address.
func VerifySignature(data, signature []byte, address string) error {
	pub, err := crypto.SigToPub(crypto.Keccak256(data), signature)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %v", err)
	}
	recovered := crypto.PubkeyToAddress(*pub).Hex()
	if !strings.EqualFold(recovered, address) {
		return fmt.Errorf("signature mismatch: expected %s, got %s", address, recovered)
	}
	return nil
}

// PrivKeyToAddr derives the issuer address for a hex-encoded private key.
func PrivKeyToAddr(privHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %v", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
