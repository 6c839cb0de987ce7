// Package catalog implements the Catalog & Statistics component (C4):
// record encodings, index naming, and the stats update protocol layered on
// top of the Index Gateway (C1).
package catalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Every persisted record is schema-versioned: a fixed binary header
// (struct-version, compat-version, payload length) followed by a JSON
// payload. structVersion is bumped whenever fields are added or changed;
// compatVersion names the oldest structVersion a decoder must still accept.
// Grounded on internal/serialization's own envelope/version-tagging idiom,
// generalized from a whole-export JSON document to a per-record binary
// header since these records live as opaque index values rather than files.
const envelopeHeaderSize = 8

func encodeEnvelope(structVersion, compatVersion uint16, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshaling record payload: %w", err)
	}

	buf := make([]byte, envelopeHeaderSize+len(body))
	binary.BigEndian.PutUint16(buf[0:2], structVersion)
	binary.BigEndian.PutUint16(buf[2:4], compatVersion)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[envelopeHeaderSize:], body)
	return buf, nil
}

func decodeEnvelope(buf []byte, maxCompatVersion uint16, payload any) error {
	if len(buf) < envelopeHeaderSize {
		return fmt.Errorf("catalog: record too short for envelope header (%d bytes)", len(buf))
	}
	structVersion := binary.BigEndian.Uint16(buf[0:2])
	compatVersion := binary.BigEndian.Uint16(buf[2:4])
	length := binary.BigEndian.Uint32(buf[4:8])

	if compatVersion > maxCompatVersion {
		return fmt.Errorf("catalog: record requires compat version %d, this reader supports up to %d", compatVersion, maxCompatVersion)
	}
	_ = structVersion // informational; decoding is driven by compatVersion

	body := buf[envelopeHeaderSize:]
	if uint32(len(body)) != length {
		return fmt.Errorf("catalog: record length mismatch: header says %d, got %d", length, len(body))
	}
	if err := json.Unmarshal(body, payload); err != nil {
		return fmt.Errorf("catalog: unmarshaling record payload: %w", err)
	}
	return nil
}
