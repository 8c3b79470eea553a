package record

import (
	"bytes"
	"reflect"
	"testing"
)

func jackson() HealthRecord {
	return HealthRecord{
		FirstName:     "Jackson",
		FamilyName:    "Donald",
		Age:           20,
		Height:        180,
		Weight:        90,
		BloodType:     "O+",
		BloodPressure: 60,
	}
}

func TestHealthRecordCodec(t *testing.T) {
	rec := jackson()

	data, err := Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}

	var out HealthRecord
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(rec, out) {
		t.Fatalf("expected %v, got %v", rec, out)
	}
}

func TestMarshalIsCanonical(t *testing.T) {
	m1 := map[string]interface{}{"b": 2, "a": 1, "c": "x"}
	m2 := map[string]interface{}{"c": "x", "a": 1, "b": 2}

	d1, err := Marshal(m1)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := Marshal(m2)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(d1, d2) {
		t.Fatalf("equal maps should encode to equal bytes")
	}

	r1, _ := Marshal(jackson())
	r2, _ := Marshal(jackson())
	if !bytes.Equal(r1, r2) {
		t.Fatalf("equal records should encode to equal bytes")
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var out HealthRecord
	if err := Unmarshal([]byte{0xc1}, &out); err == nil {
		t.Fatalf("decoding an invalid msgpack byte should fail")
	}
}
