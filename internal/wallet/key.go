package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrMissingPrivateKey = errors.New("private key is not set, export PRIVATE_KEY or set wallet.private-key")

// Key is a parsed signing key together with its derived address.
type Key struct {
	Private *ecdsa.PrivateKey
	Address common.Address
}

// ParsePrivateKey parses a hex encoded secp256k1 key, with or without the 0x prefix.
func ParsePrivateKey(privateKeyHex string) (*Key, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, ErrMissingPrivateKey
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	address, err := addressOf(privateKey)
	if err != nil {
		return nil, err
	}

	return &Key{Private: privateKey, Address: address}, nil
}

// AddressFromPrivateKey derives an Ethereum address from a private key
func AddressFromPrivateKey(privateKeyHex string) (common.Address, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return common.Address{}, err
	}
	return key.Address, nil
}

func addressOf(privateKey *ecdsa.PrivateKey) (common.Address, error) {
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to cast public key to ECDSA")
	}

	return crypto.PubkeyToAddress(*publicKeyECDSA), nil
}
