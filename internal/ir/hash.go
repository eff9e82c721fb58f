package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// The version suffix leaves room for a future algorithm change.
const (
	DomainPattern = "sheetflow/pattern/v1"
	DomainRecord  = "sheetflow/record/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte keeps the boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalRecords returns the canonical JSON encoding of compiled records.
// Identical timelines compile to identical bytes.
func MarshalRecords(records []StepRecord) ([]byte, error) {
	arr := make(IRArray, len(records))
	for i, r := range records {
		arr[i] = r.Object()
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	return data, nil
}

// PatternHash computes the content hash of a compiled step list.
// Names, ids and timestamps do not participate: two patterns with the same
// steps share a hash.
func PatternHash(records []StepRecord) (string, error) {
	data, err := MarshalRecords(records)
	if err != nil {
		return "", fmt.Errorf("PatternHash: %w", err)
	}
	return hashWithDomain(DomainPattern, data), nil
}

// RecordHash computes the content hash of a single compiled record.
func RecordHash(r StepRecord) (string, error) {
	data, err := MarshalCanonical(r.Object())
	if err != nil {
		return "", fmt.Errorf("RecordHash: %w", err)
	}
	return hashWithDomain(DomainRecord, data), nil
}
