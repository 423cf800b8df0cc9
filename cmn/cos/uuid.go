// Package cos provides common low-level types and utilities used throughout
// the registry, node, and transport packages.
package cos

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/teris-io/shortid"
)

const (
	// alphabet for generated ids; len(idABC) > 0x3f, see GenTie.
	idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

	letterRunes     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	letterIdxBits   = 6
	letterIdxMask   = 1<<letterIdxBits - 1
	lenLetterRunes  = len(letterRunes)
)

const (
	LenShortID  = 9 // id length, per https://github.com/teris-io/shortid#id-length
	lenNodeID   = 8 // min length, via crypto/rand
	tooLongID   = 32
	tooLongName = 64

	mayOnlyContain = "may only contain letters, numbers, dashes (-), underscores (_)"
	OnlyNice       = "must be at most 32 characters and " + mayOnlyContain
	OnlyPlus       = mayOnlyContain + ", and dots (.)"
)

var (
	sid  *shortid.Shortid
	rtie atomic.Uint32
)

// InitIDGen seeds the process-wide short-id generator. Call once, early, from
// Node construction; shortid itself is safe for concurrent use thereafter.
func InitIDGen(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, idABC, uint64(seed))
}

// GenUniquePortIDText returns the filesystem-safe text encoding of a
// UniquePortId's random component. It is always alpha-leading and
// alphanumeric-trailing so it composes safely into file names.
func GenUniquePortIDText() (id string) {
	var h, t string
	id = sid.MustGenerate()
	if !isAlpha(id[0]) {
		tie := int(rtie.Add(1))
		h = string(rune('A' + tie%26))
	}
	c := id[len(id)-1]
	if c == '-' || c == '_' {
		tie := int(rtie.Add(1))
		t = string(rune('a' + tie%26))
	}
	return h + id + t
}

// GenBEID deterministically encodes val into l letters: a "best-effort id"
// usable when two independent processes must derive the same short token
// from the same seed without coordination (e.g. a tie-breaker suffix).
func GenBEID(val uint64, l int) string {
	b := make([]byte, l)
	for i := range l {
		idx := int(val & letterIdxMask)
		if idx >= lenLetterRunes {
			idx -= lenLetterRunes
		}
		b[i] = letterRunes[idx]
		val >>= letterIdxBits
	}
	return string(b)
}

func IsValidUniquePortIDText(id string) bool {
	return len(id) >= LenShortID && IsAlphaNice(id)
}

// GenNodeID returns a fresh NodeId random component.
func GenNodeID() string { return CryptoRandS(lenNodeID) }

func ValidateNodeID(id string) error {
	if len(id) < lenNodeID {
		return fmt.Errorf("node id %q is too short", id)
	}
	if !IsAlphaNice(id) {
		return fmt.Errorf("node id %q is invalid: "+OnlyNice, id)
	}
	return nil
}

// CryptoRandS returns a random alphanumeric string of length l drawn from
// crypto/rand, used wherever an id's entropy must not be guessable.
func CryptoRandS(l int) string {
	b := make([]byte, l)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failing means the platform is unusable
	}
	out := make([]byte, l)
	for i, v := range b {
		out[i] = letterRunes[int(v)&letterIdxMask%lenLetterRunes]
	}
	if !isAlpha(out[0]) {
		out[0] = letterRunes[int(out[0])%26]
	}
	return string(out)
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsAlphaNice: letters and numbers w/ '-' and '_' permitted, never leading/trailing.
func IsAlphaNice(s string) bool {
	l := len(s)
	if l == 0 || l > tooLongID {
		return false
	}
	for i := range l {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') {
			continue
		}
		if c != '-' && c != '_' {
			return false
		}
		if i == 0 || i == l-1 {
			return false
		}
	}
	return true
}

// ValidateServiceName enforces the ServiceName character-set/length bound (§3).
func ValidateServiceName(s string) error {
	l := len(s)
	if l == 0 {
		return errors.New("service name must not be empty")
	}
	if l > tooLongName {
		return fmt.Errorf("service name is too long: %d > %d (max length)", l, tooLongName)
	}
	for i := range l {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '/' {
			continue
		}
		if c != '.' {
			return errors.New("service name is invalid: " + OnlyPlus)
		}
		if i < l-1 && s[i+1] == '.' {
			return errors.New("service name is invalid: " + OnlyPlus)
		}
	}
	return nil
}

// GenTie returns a fast 3-letter tie-breaker, used to deterministically
// perturb ids that would otherwise collide on their first/last character.
func GenTie() string {
	tie := rtie.Add(1)
	b0 := idABC[tie&0x3f]
	b1 := idABC[-tie&0x3f]
	b2 := idABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
