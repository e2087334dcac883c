package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// PayloadHash computes the content address of a serialized payload. Used to
// key snapshot and document blobs in the history blob store.
func PayloadHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
