package keys

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSimpleKeyfile(t *testing.T) {
	simpleKeyfile := NewSimpleKeyfile(filepath.Join(t.TempDir(), "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, err = GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if nKey.D.Cmp(key.D) != 0 || nKey.X.Cmp(key.X) != 0 || nKey.Y.Cmp(key.Y) != 0 {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	keyfile := filepath.Join(t.TempDir(), "priv_key")
	simpleKeyfile := NewSimpleKeyfile(keyfile)

	key, _ := GenerateKey()
	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		perm    os.FileMode
		wantErr bool
	}{
		{0600, false},
		{0400, false},
		{0640, true},
		{0604, true},
		{0777, true},
	}

	for _, c := range cases {
		if err := os.Chmod(keyfile, c.perm); err != nil {
			t.Fatal(err)
		}
		_, err := simpleKeyfile.ReadKey()
		if (err != nil) != c.wantErr {
			t.Fatalf("perm %o: wantErr %v, got %v", c.perm, c.wantErr, err)
		}
	}
}

func TestReadOrGenerate(t *testing.T) {
	simpleKeyfile := NewSimpleKeyfile(filepath.Join(t.TempDir(), "sub", "priv_key"))

	first, created, err := simpleKeyfile.ReadOrGenerate()
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatalf("first call should create a key")
	}

	second, created, err := simpleKeyfile.ReadOrGenerate()
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatalf("second call should read the existing key")
	}

	if PublicKeyHex(&first.PublicKey) != PublicKeyHex(&second.PublicKey) {
		t.Fatalf("keys differ after reload")
	}
}

func TestPublicKeyHex(t *testing.T) {
	key, _ := GenerateKey()

	author := PublicKeyHex(&key.PublicKey)
	if len(author) != 2+33*2 {
		t.Fatalf("compressed public key should be 33 bytes, got %s", author)
	}

	pub, err := ParsePublicKeyHex(author)
	if err != nil {
		t.Fatal(err)
	}

	if pub.X.Cmp(key.PublicKey.X) != 0 || pub.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatalf("public key does not survive hex encoding")
	}
}

func TestParsePrivateKeyRange(t *testing.T) {
	if _, err := ParsePrivateKey(make([]byte, 32)); err == nil {
		t.Fatalf("zero key should be rejected")
	}
	if _, err := ParsePrivateKey(make([]byte, 31)); err == nil {
		t.Fatalf("short key should be rejected")
	}

	key, _ := GenerateKey()
	parsed, err := ParsePrivateKey(DumpPrivateKey(key))
	if err != nil {
		t.Fatal(err)
	}
	if parsed.D.Cmp(key.D) != 0 {
		t.Fatalf("D values differ")
	}
}
