package cosmos

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cosmos/btcutil/bech32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // cosmos addresses are ripemd160(sha256(pubkey))
)

// maxAddressLength covers contract addresses as well as 20 byte accounts.
const maxAddressLength = 1023

// DerivedKey is a secp256k1 account derived from a mnemonic.
type DerivedKey struct {
	Address string
	PubKey  []byte
}

// DeriveAccount derives m/44'/coinType'/0'/0/index from mnemonic and encodes
// its address with prefix.
func DeriveAccount(mnemonic, passphrase, prefix string, coinType, index uint32) (DerivedKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return DerivedKey{}, fmt.Errorf("invalid mnemonic: %w", err)
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return DerivedKey{}, fmt.Errorf("failed to create master key: %w", err)
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + coinType,
		hdkeychain.HardenedKeyStart + 0,
		0,
		index,
	}

	key := master
	for _, idx := range path {
		key, err = key.Derive(idx)
		if err != nil {
			return DerivedKey{}, fmt.Errorf("failed to derive child key: %w", err)
		}
	}

	pub, err := key.ECPubKey()
	if err != nil {
		return DerivedKey{}, fmt.Errorf("failed to get public key: %w", err)
	}
	compressed := pub.SerializeCompressed()

	address, err := EncodeAddress(prefix, PubKeyHash(compressed))
	if err != nil {
		return DerivedKey{}, err
	}

	return DerivedKey{Address: address, PubKey: compressed}, nil
}

// PubKeyHash is the 20 byte account id of a compressed secp256k1 key.
func PubKeyHash(compressed []byte) []byte {
	sha := sha256.Sum256(compressed)
	hasher := ripemd160.New()
	hasher.Write(sha[:])
	return hasher.Sum(nil)
}

// EncodeAddress bech32 encodes raw address bytes.
func EncodeAddress(prefix string, raw []byte) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	address, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return address, nil
}

// ValidateAddress checks that address is valid bech32 carrying prefix.
func ValidateAddress(address, prefix string) error {
	hrp, data, err := bech32.Decode(address, maxAddressLength)
	if err != nil {
		return fmt.Errorf("invalid bech32 address %q: %w", address, err)
	}
	if hrp != prefix {
		return fmt.Errorf("address %q has prefix %q, want %q", address, hrp, prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("invalid address payload: %w", err)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return fmt.Errorf("address %q has %d byte payload", address, len(raw))
	}
	return nil
}
