package engine

import (
	"strconv"
	"strings"
)

// Token prefixes distinguish where an order came from.
const (
	onlineTokenPrefix = "PS-"
	walkInTokenPrefix = "FO-"
)

// ScanNamespace is the prefix embedded in the QR codes handed to
// customers. Scanned strings outside this namespace are rejected
// without touching any job.
const ScanNamespace = "PrintSmart-Token"

// parseScanCode extracts the token from a decoded QR string of the form
// "PrintSmart-Token:<token>".
func parseScanCode(code string) (string, error) {
	namespace, token, ok := strings.Cut(code, ":")
	if !ok || namespace != ScanNamespace || token == "" {
		return "", ErrInvalidCode
	}
	return token, nil
}

// generateTokenLocked produces a token unique across the job's entire
// lifetime, retrying on collision. The suffix starts at three digits
// and widens if the pool for the current width is exhausted. Caller
// holds e.mu.
func (e *Engine) generateTokenLocked(walkIn bool) string {
	prefix := onlineTokenPrefix
	if walkIn {
		prefix = walkInTokenPrefix
	}

	low := 100
	for {
		for attempt := 0; attempt < 10*low; attempt++ {
			token := prefix + strconv.Itoa(low+e.rng.Intn(9*low))
			if !e.tokenExistsLocked(token) {
				return token
			}
		}
		low *= 10
	}
}

func (e *Engine) tokenExistsLocked(token string) bool {
	for _, j := range e.jobs {
		if j.Token == token {
			return true
		}
	}
	return false
}
