package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// KeyReaderWriter reads and writes author keys from/to any format or support.
type KeyReaderWriter interface {
	ReadKey() (*ecdsa.PrivateKey, error)
	WriteKey(*ecdsa.PrivateKey) error
}

// SimpleKeyfile implements KeyReaderWriter with a file holding the raw hex
// dump of the private key.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile ...
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{
		keyfile: keyfile,
	}
}

// Path returns the location of the underlying file.
func (k *SimpleKeyfile) Path() string {
	return k.keyfile
}

// CheckFileInfo verifies that the file exists and that only its owner has any
// permission on it.
func (k *SimpleKeyfile) CheckFileInfo() error {
	info, err := os.Stat(k.keyfile)
	if err != nil {
		return err
	}

	perm := info.Mode().Perm()

	// group and other bits
	if perm&0077 != 0 {
		return fmt.Errorf("%s permissions should exclude 'groups' and 'others'. Got %o", filepath.Base(k.keyfile), perm)
	}

	return nil
}

// ReadKey implements KeyReaderWriter.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	if err := k.CheckFileInfo(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(buf)))
	if err != nil {
		return nil, err
	}

	return ParsePrivateKey(raw)
}

// WriteKey implements KeyReaderWriter. It creates the parent directory if
// needed and writes the file with 0600 permissions.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.keyfile), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.keyfile, []byte(PrivateKeyHex(key)), 0600)
}

// ReadOrGenerate returns the key stored in the file, generating and writing a
// new one if the file does not exist yet. The boolean is true when a new key
// was created.
func (k *SimpleKeyfile) ReadOrGenerate() (*ecdsa.PrivateKey, bool, error) {
	key, err := k.ReadKey()
	if err == nil {
		return key, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, err
	}

	key, err = GenerateKey()
	if err != nil {
		return nil, false, err
	}

	if err := k.WriteKey(key); err != nil {
		return nil, false, err
	}

	return key, true, nil
}
