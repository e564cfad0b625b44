package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// ConfigHash returns a SHA-256 hash of the scoring config for reproducibility.
// Extra values (scenario params, band metadata) are folded into the hash.
func ConfigHash(cfg any, extra ...any) string {
	data, err := json.Marshal(append([]any{cfg}, extra...))
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars
}
