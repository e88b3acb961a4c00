package submission

import (
	"strings"
	"testing"

	"ctfcore/server/settings"
)

func TestHashFlagAlgorithms(t *testing.T) {
	algos := []string{"md5", "sha1", "sha256", "sha3-256", ""}
	digests := make(map[string]bool)
	for _, algo := range algos {
		d, err := hashFlag(algo, "pepper", "flag{x}")
		if err != nil {
			t.Fatalf("hashFlag(%q) error: %v", algo, err)
		}
		if d != strings.ToLower(d) {
			t.Errorf("hashFlag(%q) not lowercase hex: %s", algo, d)
		}
		digests[d] = true
	}
	// "" aliases sha256, every real algorithm must differ
	if len(digests) != 4 {
		t.Errorf("expected 4 distinct digests across algorithms, got %d", len(digests))
	}

	if _, err := hashFlag("crc32", "pepper", "flag{x}"); err == nil {
		t.Error("unknown algorithm accepted")
	}
}

func TestHashFlagSaltChangesDigest(t *testing.T) {
	a, _ := hashFlag("sha256", "salt-a", "flag{x}")
	b, _ := hashFlag("sha256", "salt-b", "flag{x}")
	if a == b {
		t.Error("digest must depend on the salt")
	}
}

func TestDigestsEqualCaseInsensitive(t *testing.T) {
	d, _ := hashFlag("sha256", "s", "flag{x}")
	if !digestsEqual(d, strings.ToUpper(d)) {
		t.Error("uppercase stored hash must still match")
	}
	flipped := "0"
	if d[len(d)-1] == '0' {
		flipped = "1"
	}
	if digestsEqual(d, d[:len(d)-1]+flipped) {
		t.Error("differing digests compared equal")
	}
}

func TestMatchSecretStatic(t *testing.T) {
	snap := &settings.Snapshot{FlagSalt: "competition-salt"}
	stored, _ := hashFlag("sha256", snap.FlagSalt, "flag{right}")
	ch := &challengeRow{ID: 1, FlagType: flagTypeStatic, HashAlgo: "sha256", FlagHash: stored}

	if !matchSecret(ch, snap, "flag{right}") {
		t.Error("correct flag rejected")
	}
	if matchSecret(ch, snap, "flag{wrong}") {
		t.Error("wrong flag accepted")
	}

	ch.HashAlgo = "nope"
	if matchSecret(ch, snap, "flag{right}") {
		t.Error("unknown algorithm must evaluate as incorrect")
	}
}

func TestMatchSecretPattern(t *testing.T) {
	snap := &settings.Snapshot{}
	ch := &challengeRow{ID: 2, FlagType: flagTypeRegex, FlagPattern: `flag\{[0-9]{4}\}`}

	if !matchSecret(ch, snap, "flag{1234}") {
		t.Error("matching submission rejected")
	}
	if matchSecret(ch, snap, "flag{12345}") {
		t.Error("non-matching submission accepted")
	}
}

func TestMatchSecretUnsafePatternIsIncorrect(t *testing.T) {
	snap := &settings.Snapshot{}
	ch := &challengeRow{ID: 3, FlagType: flagTypeRegex, FlagPattern: `(a+)+$`}

	// "aaaa" would satisfy the pattern; the safety pre-check must keep it
	// from ever being evaluated, so the answer is simply incorrect.
	if matchSecret(ch, snap, "aaaa") {
		t.Error("unsafe pattern was evaluated")
	}
}

func TestIsHoneypot(t *testing.T) {
	trap, _ := hashFlag("sha256", "competition-salt", "flag{leaked}")
	snap := &settings.Snapshot{FlagSalt: "competition-salt", HoneypotHash: trap}

	if !isHoneypot(snap, "flag{leaked}") {
		t.Error("trap submission not detected")
	}
	if isHoneypot(snap, "flag{honest-guess}") {
		t.Error("ordinary submission flagged as trap")
	}

	empty := &settings.Snapshot{FlagSalt: "competition-salt"}
	if isHoneypot(empty, "flag{leaked}") {
		t.Error("honeypot fired with no trap configured")
	}
}
