package highload

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/openbuilders/highload-sender/internal/errors"

	"github.com/xssnick/tonutils-go/ton/wallet"
)

// ParsePrivateKey accepts a hex encoded ed25519 secret key (64 bytes, seed
// followed by the public key) or a bare 32 byte seed.
func ParsePrivateKey(secret string) (ed25519.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New(CodeSignature, "secret key is empty")
	}

	raw, err := hex.DecodeString(secret)
	if err != nil {
		return nil, errors.Wrap(CodeSignature, err, "decode secret key")
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(key[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, errors.New(CodeSignature, "public part does not match the seed")
		}
		return key, nil
	}

	return nil, errors.New(CodeSignature,
		"secret key must be %d or %d bytes, got %d",
		ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
}

// KeyFromMnemonic derives the wallet key from a space separated TON
// mnemonic. Unknown words and mnemonics that are not TON seeds are rejected.
func KeyFromMnemonic(mnemonic string) (ed25519.PrivateKey, error) {
	words := strings.Fields(mnemonic)
	if len(words) == 0 {
		return nil, errors.New(CodeSignature, "mnemonic is empty")
	}

	key, err := wallet.SeedToPrivateKey(words, "", false)
	if err != nil {
		return nil, errors.Wrap(CodeSignature, err, "derive key from mnemonic")
	}

	return key, nil
}
