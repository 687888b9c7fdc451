// Package seal computes the tamper-evident fingerprint stored with every
// accepted answer.
//
// The digest is SHA-256 over a length-prefixed encoding of the user id,
// question id, answer value and acceptance time, so field boundaries can
// never shift between inputs ("1","23" and "12","3" encode differently).
package seal

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"

	"fipabet-seal-service/internal/domain"
)

const version = "v1"

// Seal returns the hex encoded digest for the given answer fields.
func Seal(userID string, questionID int64, value string, at time.Time) string {
	sum := sha256.Sum256(Canonical(userID, questionID, value, at))
	return hex.EncodeToString(sum[:])
}

// Canonical builds the exact byte string that Seal digests.
func Canonical(userID string, questionID int64, value string, at time.Time) []byte {
	fields := []string{
		version,
		userID,
		strconv.FormatInt(questionID, 10),
		value,
		at.UTC().Format(time.RFC3339Nano),
	}
	buf := make([]byte, 0, 64+len(userID)+len(value))
	for _, f := range fields {
		buf = strconv.AppendInt(buf, int64(len(f)), 10)
		buf = append(buf, ':')
		buf = append(buf, f...)
		buf = append(buf, ';')
	}
	return buf
}

// Verify recomputes the seal of a stored answer and reports whether it matches.
func Verify(a domain.Answer) bool {
	want := Seal(a.UserID, a.QuestionID, a.Value, a.CreatedAt)
	return subtle.ConstantTimeCompare([]byte(want), []byte(a.SealHash)) == 1
}

// Timestamp normalizes an acceptance time to the precision the stores keep.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
