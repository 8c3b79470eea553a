package crypto

import (
	"crypto/sha256"

	"github.com/zeebo/blake3"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// domainKey is a 32-byte key for BLAKE3 keyed hashing: the ASCII name of the
// domain, zero-padded. The same bytes hash differently in each domain.
type domainKey [32]byte

func newDomainKey(name string) domainKey {
	var k domainKey
	if len(name) > len(k) {
		panic("crypto: domain name longer than 32 bytes: " + name)
	}
	copy(k[:], name)
	return k
}

var (
	entryDomainKey  = newDomainKey("recordstore.entry")
	anchorDomainKey = newDomainKey("recordstore.anchor")
)

// EntryHash returns the entry-domain BLAKE3 keyed hash of the serialized
// payload. Identical bytes always produce the identical hash.
func EntryHash(data []byte) []byte {
	return keyedHash(entryDomainKey, data)
}

// AnchorHash returns the anchor-domain BLAKE3 keyed hash of a collection path
// such as "all_health_records".
func AnchorHash(path string) []byte {
	return keyedHash(anchorDomainKey, []byte(path))
}

func keyedHash(key domainKey, data []byte) []byte {
	// NewKeyed only fails on a key that is not 32 bytes long
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("crypto: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}
