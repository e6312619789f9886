package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// operators ordered longest-first so two-character forms win.
var operators = []string{
	"==", "!=", "<=", ">=", "&&", "||",
	"+", "-", "*", "/", "%", "<", ">", "!", "?", ":", "(", ")", "[", "]", ",", ".",
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		if c == '\'' || c == '"' {
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(input) && input[j] != quote {
				if input[j] == '\\' && j+1 < len(input) {
					j++
				}
				sb.WriteByte(input[j])
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string at position %d", i)
			}
			tokens = append(tokens, token{kind: tokenString, text: sb.String(), pos: i})
			i = j + 1
			continue
		}

		if c >= '0' && c <= '9' {
			j := i
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			num, err := strconv.ParseFloat(input[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", input[i:j], i)
			}
			tokens = append(tokens, token{kind: tokenNumber, text: input[i:j], num: num, pos: i})
			i = j
			continue
		}

		if isIdentStart(rune(c)) {
			j := i
			for j < len(input) && isIdentPart(rune(input[j])) {
				j++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: input[i:j], pos: i})
			i = j
			continue
		}

		matched := false
		for _, op := range operators {
			if strings.HasPrefix(input[i:], op) {
				tokens = append(tokens, token{kind: tokenOp, text: op, pos: i})
				i += len(op)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: len(input)})
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
