package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestGeneratorMonotonic(t *testing.T) {
	g, err := NewGenerator()
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		if next == prev {
			t.Fatalf("generator produced duplicate ID at iteration %d", i)
		}
		prev = next
	}
}

func TestGeneratorIDsAreTaggedObject(t *testing.T) {
	g, err := NewGenerator()
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	id := g.Next()
	if id[0] != tagObject {
		t.Fatalf("expected object tag byte %x, got %x", tagObject, id[0])
	}
}

func TestNameToIndexIDDeterministic(t *testing.T) {
	a := NameToIndexID("bucket-instances")
	b := NameToIndexID("bucket-instances")
	if a != b {
		t.Fatalf("NameToIndexID not deterministic: %v != %v", a, b)
	}
	c := NameToIndexID("users")
	if a == c {
		t.Fatalf("NameToIndexID collided for distinct names")
	}
	if a[0] != tagIndex {
		t.Fatalf("expected index tag byte %x, got %x", tagIndex, a[0])
	}
}

func TestVersionInstanceRoundTrip(t *testing.T) {
	ts := time.UnixMilli(1_700_000_000_123).UTC()
	encoded, err := encodeVersionInstance(ts)
	if err != nil {
		t.Fatalf("encodeVersionInstance: %v", err)
	}
	if len(encoded) != instanceWidth {
		t.Fatalf("expected instance width %d, got %d", instanceWidth, len(encoded))
	}
	decoded, err := DecodeVersionInstanceTime(encoded)
	if err != nil {
		t.Fatalf("DecodeVersionInstanceTime: %v", err)
	}
	if !decoded.Equal(ts) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, ts)
	}
}

func TestVersionInstanceOrdersNewestFirst(t *testing.T) {
	t1 := time.UnixMilli(1_700_000_000_000).UTC()
	t2 := time.UnixMilli(1_700_000_001_000).UTC()

	enc1, err := encodeVersionInstance(t1)
	if err != nil {
		t.Fatalf("encodeVersionInstance(t1): %v", err)
	}
	enc2, err := encodeVersionInstance(t2)
	if err != nil {
		t.Fatalf("encodeVersionInstance(t2): %v", err)
	}
	if !(enc2[:timestampWidth] < enc1[:timestampWidth]) {
		t.Fatalf("expected encoded(t2) timestamp prefix < encoded(t1) timestamp prefix; got %q >= %q", enc2[:timestampWidth], enc1[:timestampWidth])
	}
}

func TestNewVersionInstanceLength(t *testing.T) {
	inst, err := NewVersionInstance()
	if err != nil {
		t.Fatalf("NewVersionInstance: %v", err)
	}
	if len(inst) != instanceWidth {
		t.Fatalf("expected length %d, got %d (%q)", instanceWidth, len(inst), inst)
	}
}

func TestNewUploadIDHasFixedPrefixAndIsUnique(t *testing.T) {
	a, err := NewUploadID()
	if err != nil {
		t.Fatalf("NewUploadID: %v", err)
	}
	b, err := NewUploadID()
	if err != nil {
		t.Fatalf("NewUploadID: %v", err)
	}
	if !strings.HasPrefix(a, uploadIDPrefix) || !strings.HasPrefix(b, uploadIDPrefix) {
		t.Fatalf("upload IDs must carry the fixed prefix %q, got %q and %q", uploadIDPrefix, a, b)
	}
	if a == b {
		t.Fatalf("two calls to NewUploadID produced the same ID")
	}
}
