package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"msg-deidentifier/internal/phi"
)

var nonAlphaRegex = regexp.MustCompile(`[^A-Z\s]`)

// NormalizeName normalizes a person name for consistent matching.
// Handles: "DOE^JOHN", "John Doe", "doe, john", etc.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	// HL7 and DICOM component separators become spaces
	name = strings.ReplaceAll(name, "^", " ")
	name = strings.ReplaceAll(name, ",", " ")

	name = nonAlphaRegex.ReplaceAllString(name, "")

	// Split into parts, sort alphabetically, rejoin
	parts := strings.Fields(name)
	sort.Strings(parts)

	return strings.Join(parts, "")
}

// Digest returns HMAC-SHA256 keyed by salt over the category name, a NUL
// separator and the value.
func Digest(cat phi.Category, value, salt string) []byte {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(cat.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

// SubjectDigest returns a short hex digest identifying a subject key under
// salt. Statistics count subjects by digest so raw keys never leave the
// transformer.
func SubjectDigest(subjectKey, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte("subject\x00"))
	mac.Write([]byte(subjectKey))
	return hex.EncodeToString(mac.Sum(nil)[:12])
}

// SubjectSalt derives the salt used when pseudonyms are scoped to one
// subject instead of the whole batch.
func SubjectSalt(salt, subjectKey string) string {
	return salt + "\x00" + subjectKey
}

// digestIndex maps a digest onto [0, n).
func digestIndex(digest []byte, n int) int {
	return int(binary.BigEndian.Uint64(digest[:8]) % uint64(n))
}

// byteStream yields an unbounded deterministic byte sequence seeded by a
// digest. The first 32 bytes are the digest itself; further blocks are
// HMAC(digest, counter).
type byteStream struct {
	seed    []byte
	buf     []byte
	counter uint32
}

func newByteStream(digest []byte) *byteStream {
	return &byteStream{seed: digest, buf: digest}
}

func (s *byteStream) next() byte {
	if len(s.buf) == 0 {
		s.counter++
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], s.counter)
		mac := hmac.New(sha256.New, s.seed)
		mac.Write(ctr[:])
		s.buf = mac.Sum(nil)
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b
}
