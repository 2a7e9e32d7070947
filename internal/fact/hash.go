package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix leaves room for a
// future algorithm change.
const (
	DomainEntry = "metastore/entry/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EntryHash computes the checksum stored with every transaction log entry.
// It covers the sequence number, commit time, actor and change-set so that a
// damaged row cannot be replayed silently.
func EntryHash(seq int64, committedAt int64, actor string, cs ChangeSet) (string, error) {
	obj := map[string]any{
		"seq":          seq,
		"committed_at": committedAt,
		"actor":        actor,
		"change_set":   cs.canonical(),
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EntryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, data), nil
}
