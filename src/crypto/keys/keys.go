package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/idsov/recordstore/src/common"
)

// secp256k1N is the order of the secp256k1 base point. A valid private key is
// in [1, N-1].
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

const privateKeyLen = 32

// GenerateKey creates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// DumpPrivateKey exports the D value of a private key as 32 big-endian bytes.
func DumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return (*btcec.PrivateKey)(priv).Serialize()
}

// ParsePrivateKey rebuilds a private key from the output of DumpPrivateKey.
func ParsePrivateKey(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != privateKeyLen {
		return nil, fmt.Errorf("invalid length, need %d bytes", privateKeyLen)
	}

	n := new(big.Int).SetBytes(d)
	if n.Cmp(secp256k1N) >= 0 {
		return nil, errors.New("invalid private key, >=N")
	}
	if n.Sign() <= 0 {
		return nil, errors.New("invalid private key, zero or negative")
	}

	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), d)
	return priv.ToECDSA(), nil
}

// PrivateKeyHex returns the hex dump of a private key as written to key files.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}

// PublicKeyHex returns the compressed form of the public key, 0X-prefixed. It
// is used as the author identifier of actions.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return ""
	}
	return common.EncodeToString((*btcec.PublicKey)(pub).SerializeCompressed())
}

// ParsePublicKeyHex is the inverse of PublicKeyHex.
func ParsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	raw, err := common.DecodeFromString(s)
	if err != nil {
		return nil, err
	}
	pub, err := btcec.ParsePubKey(raw, btcec.S256())
	if err != nil {
		return nil, err
	}
	return pub.ToECDSA(), nil
}
