// Package naming provides segment file naming strategies.
package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// Prefix names segments "<prefix><seq><suffix>", e.g. "journal-12".
type Prefix struct {
	Prefix string
	Suffix string
}

// NewPrefix returns a strategy producing "<name>-<seq>".
func NewPrefix(name string) Prefix {
	return Prefix{Prefix: name + "-"}
}

func (p Prefix) Generate(seq uint64) string {
	return p.Prefix + strconv.FormatUint(seq, 10) + p.Suffix
}

func (p Prefix) IsJournalFile(name string) bool {
	digits, ok := p.digits(name)
	return ok && isDigits(digits)
}

func (p Prefix) ExtractSequence(name string) (uint64, error) {
	digits, ok := p.digits(name)
	if !ok {
		return 0, fmt.Errorf("%q is not a journal file", name)
	}
	return strconv.ParseUint(digits, 10, 64)
}

func (p Prefix) digits(name string) (string, bool) {
	if !strings.HasPrefix(name, p.Prefix) || !strings.HasSuffix(name, p.Suffix) {
		return "", false
	}
	if len(name) <= len(p.Prefix)+len(p.Suffix) {
		return "", false
	}
	return name[len(p.Prefix) : len(name)-len(p.Suffix)], true
}

// Padded names segments "<base>_segment_<seq zero padded to 20 digits>.log" so that
// lexical and numeric order agree.
type Padded struct {
	Base string
}

const (
	paddedInfix  = "_segment_"
	paddedSuffix = ".log"
	paddedWidth  = 20
)

func (p Padded) Generate(seq uint64) string {
	return fmt.Sprintf("%s%s%0*d%s", p.Base, paddedInfix, paddedWidth, seq, paddedSuffix)
}

func (p Padded) IsJournalFile(name string) bool {
	digits, ok := p.digits(name)
	return ok && len(digits) == paddedWidth && isDigits(digits)
}

func (p Padded) ExtractSequence(name string) (uint64, error) {
	digits, ok := p.digits(name)
	if !ok {
		return 0, fmt.Errorf("%q is not a journal file", name)
	}
	return strconv.ParseUint(digits, 10, 64)
}

func (p Padded) digits(name string) (string, bool) {
	prefix := p.Base + paddedInfix
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, paddedSuffix) {
		return "", false
	}
	if len(name) <= len(prefix)+len(paddedSuffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(paddedSuffix)], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
