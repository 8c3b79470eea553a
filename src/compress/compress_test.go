package compress

import (
	"bytes"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	compressible := bytes.Repeat([]byte("first_name=Jackson;family_name=Donald;"), 64)
	tiny := []byte{0x82, 0xa1, 0x61, 0x01}

	for _, tag := range []Tag{None, LZ4, Zstd} {
		for name, data := range map[string][]byte{"compressible": compressible, "tiny": tiny} {
			t.Run(tag.String()+"/"+name, func(t *testing.T) {
				blob, err := Encode(data, tag)
				if err != nil {
					t.Fatal(err)
				}

				out, err := Decode(blob)
				if err != nil {
					t.Fatal(err)
				}

				if !bytes.Equal(out, data) {
					t.Fatalf("decoded bytes differ from input")
				}
			})
		}
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	data := []byte{1, 2, 3}

	blob, err := Encode(data, Zstd)
	if err != nil {
		t.Fatal(err)
	}

	if Tag(blob[0]) != None {
		t.Fatalf("tag should be none, got %s", Tag(blob[0]))
	}
}

func TestCompressibleIsSmaller(t *testing.T) {
	data := bytes.Repeat([]byte("O+"), 1024)

	for _, tag := range []Tag{LZ4, Zstd} {
		blob, err := Encode(data, tag)
		if err != nil {
			t.Fatal(err)
		}
		if Tag(blob[0]) != tag {
			t.Fatalf("expected tag %s, got %s", tag, Tag(blob[0]))
		}
		if len(blob) >= len(data) {
			t.Fatalf("%s: blob should be smaller than input", tag)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("empty blob should fail")
	}
	if _, err := Decode([]byte{9, 1, 0}); err == nil {
		t.Fatalf("unknown tag should fail")
	}
	if _, err := Decode([]byte{byte(None), 5, 1, 2}); err == nil {
		t.Fatalf("length mismatch should fail")
	}
}

func TestParseTag(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		tag, err := ParseTag(name)
		if err != nil {
			t.Fatal(err)
		}
		if tag.String() != name {
			t.Fatalf("expected %s, got %s", name, tag)
		}
	}
	if _, err := ParseTag("gzip"); err == nil {
		t.Fatalf("gzip should be rejected")
	}
}
