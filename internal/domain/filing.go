package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Filing is a core entity describing one corporate disclosure fetched from
// an exchange source.
type Filing struct {
	Symbol      string
	ID          string
	Headline    string
	PublishedAt time.Time
	DocumentURL string
}

// FilingID returns the source-native identifier when one exists, otherwise
// a stable hash of (symbol, headline, date). The same underlying filing
// must map to the same ID across repeated fetches, even when the source
// re-serves it with fields reordered.
func FilingID(nativeID, symbol, headline, date string) string {
	if id := strings.TrimSpace(nativeID); id != "" {
		return id
	}
	sum := sha1.Sum([]byte(symbol + "|" + headline + "|" + date))
	return hex.EncodeToString(sum[:])
}
