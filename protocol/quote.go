package protocol

import (
	"fmt"
	"strings"
	"unicode"
)

// NeedsQuote reports whether arg has to be wrapped in quotes to survive as a
// single argument.
func NeedsQuote(arg string) bool {
	if arg == "" {
		return true
	}

	for _, r := range arg {
		if r == '"' || r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return true
		}
	}

	return false
}

// Quote renders arg as a single protocol argument, quoted only when it has to
// be.
func Quote(arg string) string {
	if !NeedsQuote(arg) {
		return arg
	}

	return QuoteText(arg)
}

// QuoteText always renders arg quoted. Free text arguments such as PUSH text,
// QUERY terms and SUGGEST words must be sent this way, even single words.
func QuoteText(arg string) string {
	var b strings.Builder
	b.Grow(len(arg) + 2)
	b.WriteByte('"')

	for _, r := range arg {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if unicode.IsControl(r) {
				// Other control characters cannot be represented, they
				// become a plain space.
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(r)
		}
	}

	b.WriteByte('"')
	return b.String()
}

// Token is a single argument of a frame.
type Token struct {
	Value string

	// Quoted is true when the argument was sent in quotes
	Quoted bool
}

// Tokenize splits a payload into arguments, undoing Quote.
func Tokenize(payload string) ([]string, error) {
	tokens, err := Tokens(payload)
	if err != nil {
		return nil, err
	}

	var args []string
	for _, token := range tokens {
		args = append(args, token.Value)
	}

	return args, nil
}

// Tokens splits a payload into arguments like Tokenize, remembering which
// ones were quoted.
func Tokens(payload string) ([]Token, error) {
	var (
		args    []Token
		quoted  bool
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)

	for i := 0; i < len(payload); i++ {
		c := payload[i]

		if inQuote {
			if escaped {
				switch c {
				case 'n':
					cur.WriteByte('\n')
				case 'r':
					cur.WriteByte('\r')
				case 't':
					cur.WriteByte('\t')
				default:
					cur.WriteByte(c)
				}
				escaped = false
				continue
			}

			switch c {
			case '\\':
				escaped = true
			case '"':
				inQuote = false
			default:
				cur.WriteByte(c)
			}
			continue
		}

		switch c {
		case ' ':
			if started {
				args = append(args, Token{Value: cur.String(), Quoted: quoted})
				cur.Reset()
				started = false
				quoted = false
			}
		case '"':
			inQuote = true
			started = true
			quoted = true
		default:
			cur.WriteByte(c)
			started = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("Failed to tokenize '%s': %w", payload, ErrUnterminatedQuote)
	}

	if started {
		args = append(args, Token{Value: cur.String(), Quoted: quoted})
	}

	return args, nil
}
