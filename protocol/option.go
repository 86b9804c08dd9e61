package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	OptLimit  = "LIMIT"
	OptOffset = "OFFSET"
	OptLang   = "LANG"
)

// Option renders an optional argument such as LIMIT(10).
func Option(name string, value string) string {
	return name + "(" + value + ")"
}

// IntOption renders an optional integer argument.
func IntOption(name string, value int) string {
	return Option(name, strconv.Itoa(value))
}

// ParseOption splits a NAME(value) token. ok is false when token is not an
// option.
func ParseOption(token string) (name string, value string, ok bool) {
	open := strings.IndexByte(token, '(')
	if open <= 0 || !strings.HasSuffix(token, ")") {
		return "", "", false
	}

	return token[:open], token[open+1 : len(token)-1], true
}

// ParseIntOption parses the value of a NAME(n) token as a non-negative integer.
func ParseIntOption(token string) (string, int, error) {
	name, value, ok := ParseOption(token)
	if !ok {
		return "", 0, fmt.Errorf("'%s' is not an option", token)
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return name, 0, fmt.Errorf("option %s has invalid value '%s'", name, value)
	}

	return name, n, nil
}
