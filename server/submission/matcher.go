package submission

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/sha3"

	"ctfcore/server/saferegex"
	"ctfcore/server/settings"
)

// Secret specification kinds on the challenge record.
const (
	flagTypeStatic = "static"
	flagTypeRegex  = "regex"
)

// hashFlag computes the salted digest of a submission with the challenge's
// configured algorithm. Hashing always happens server-side from the raw
// submission; a client-supplied digest is never accepted as the comparand.
func hashFlag(algo, salt, submission string) (string, error) {
	data := []byte(salt + submission)
	switch algo {
	case "md5":
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha1":
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case "", "sha256":
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha3-256":
		sum := sha3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", algo)
	}
}

// digestsEqual compares two hex digests case-insensitively in constant time.
func digestsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(b))) == 1
}

// matchSecret evaluates the submission against the challenge secret. A
// pattern that fails the safety pre-check, fails to compile, or exceeds its
// evaluation budget counts as incorrect; the reason is logged for operators
// and never surfaced to the submitter.
func matchSecret(ch *challengeRow, snap *settings.Snapshot, submitted string) bool {
	switch ch.FlagType {
	case flagTypeRegex:
		matched, err := saferegex.Match(ch.FlagPattern, submitted, saferegex.DefaultBudget)
		if err != nil {
			log.Printf("[matcher] challenge %d pattern not evaluated: %v", ch.ID, err)
			return false
		}
		return matched
	default:
		digest, err := hashFlag(ch.HashAlgo, snap.FlagSalt, submitted)
		if err != nil {
			log.Printf("[matcher] challenge %d: %v", ch.ID, err)
			return false
		}
		return digestsEqual(digest, ch.FlagHash)
	}
}

// isHoneypot reports whether the submission matches the configured trap
// hash. Always checked after the real comparison, whatever its outcome, and
// before any response is composed.
func isHoneypot(snap *settings.Snapshot, submitted string) bool {
	if snap.HoneypotHash == "" {
		return false
	}
	digest, err := hashFlag("sha256", snap.FlagSalt, submitted)
	if err != nil {
		return false
	}
	return digestsEqual(digest, snap.HoneypotHash)
}
