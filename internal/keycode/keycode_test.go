package keycode

import (
	"bytes"
	"testing"
)

func TestEncodeBytes(t *testing.T) {
	cases := []struct {
		in   []byte
		want []byte
	}{
		{[]byte{97, 98, 99}, []byte{97, 98, 99, 0, 0}},
		{[]byte{97, 98, 0, 99}, []byte{97, 98, 0, 255, 99, 0, 0}},
		{[]byte{97, 98, 0, 0, 99}, []byte{97, 98, 0, 255, 0, 255, 99, 0, 0}},
	}
	for _, c := range cases {
		got := EncodeBytes(c.in)
		if !bytes.Equal(got, c.want) {
			t.Errorf("EncodeBytes(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDecodeBytesRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{97, 98, 99},
		{97, 98, 0, 99},
		{97, 98, 0, 0, 99},
		{0, 0, 0},
	}
	for _, in := range inputs {
		enc := EncodeBytes(in)
		got, rest, err := DecodeBytes(enc)
		if err != nil {
			t.Fatalf("DecodeBytes(%v) error: %v", enc, err)
		}
		if len(rest) != 0 {
			t.Errorf("expected no remaining input, got %v", rest)
		}
		if !bytes.Equal(got, in) {
			t.Errorf("round trip %v -> %v -> %v", in, enc, got)
		}
	}
}

func TestDecodeBytesLeavesRest(t *testing.T) {
	enc := EncodeBytes([]byte("ab"))
	enc = append(enc, 0xDE, 0xAD)
	got, rest, err := DecodeBytes(enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte("ab")) {
		t.Errorf("got %v, want 'ab'", got)
	}
	if !bytes.Equal(rest, []byte{0xDE, 0xAD}) {
		t.Errorf("rest = %v, want [0xDE 0xAD]", rest)
	}
}

func TestEncodeBytesPreservesOrder(t *testing.T) {
	keys := [][]byte{
		[]byte("aa"),
		[]byte("aaca"),
		[]byte("aabb"),
		[]byte("ab"),
		{0x00, 0x01},
		{0x00},
	}
	for i := range keys {
		for j := range keys {
			natural := bytes.Compare(keys[i], keys[j])
			encoded := bytes.Compare(EncodeBytes(keys[i]), EncodeBytes(keys[j]))
			if (natural < 0) != (encoded < 0) || (natural == 0) != (encoded == 0) {
				t.Errorf("order mismatch for %q vs %q: natural=%d encoded=%d", keys[i], keys[j], natural, encoded)
			}
		}
	}
}

func TestEncodeUint64RoundTripAndOrder(t *testing.T) {
	values := []uint64{0, 1, 11, 255, 256, 1 << 32, ^uint64(0)}
	for _, v := range values {
		enc := EncodeUint64(v)
		got, rest, err := DecodeUint64(enc)
		if err != nil {
			t.Fatalf("DecodeUint64 error: %v", err)
		}
		if len(rest) != 0 {
			t.Errorf("expected no remaining input")
		}
		if got != v {
			t.Errorf("round trip %d -> %d", v, got)
		}
	}
	for i := range values {
		for j := range values {
			natural := values[i] < values[j]
			encoded := bytes.Compare(EncodeUint64(values[i]), EncodeUint64(values[j])) < 0
			if natural != encoded {
				t.Errorf("order mismatch for %d vs %d", values[i], values[j])
			}
		}
	}
}
