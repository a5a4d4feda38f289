package services

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/kitchensink/internal/common"
)

var (
	memberNamePattern = regexp.MustCompile(`^[a-zA-Z\s]*$`)
	phonePattern      = regexp.MustCompile(`^\+?[1-9][0-9]{7,14}$`)
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// violations collects field messages and renders them as one
// common.ErrValidation error.
type violations []string

func (v *violations) add(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(v, ", "))
}

func validEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}
