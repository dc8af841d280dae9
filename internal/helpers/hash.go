package helpers

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/xssnick/tonutils-go/address"
)

const base62Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// TinyHash is a short base62 id built from the first 4 bytes of the sha256
// of input.
func TinyHash(input string) string {
	hash := sha256.Sum256([]byte(input))

	return base62Encode(uint64(binary.BigEndian.Uint32(hash[:4])))
}

// WalletHash identifies a wallet in storage regardless of the flags of the
// user friendly form of its address.
func WalletHash(addr *address.Address) string {
	return TinyHash(addr.StringRaw())
}

func base62Encode(num uint64) string {
	if num == 0 {
		return "0"
	}

	var result []byte
	for num > 0 {
		result = append([]byte{base62Charset[num%62]}, result...)
		num /= 62
	}

	return string(result)
}
