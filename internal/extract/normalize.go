package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText produces the canonical form used for content fingerprints:
// NFC, whitespace collapsed to single spaces, lowercased.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// TextHash is the content fingerprint of an article body: sha256 over the
// normalized text, hex-encoded.
func TextHash(cleanText string) string {
	sum := sha256.Sum256([]byte(NormalizeText(cleanText)))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle lowercases and collapses whitespace; stored as title_norm.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
