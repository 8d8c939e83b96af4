package transcript

import (
	"unicode"
	"unicode/utf8"
)

// whitespace-delimited word with its byte offsets in the source text
type Token struct {
	Text  string
	Start int
	End   int
}

// splits text on unicode whitespace; token i is transcript word i
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1

	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: text[start:i], Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: text[start:], Start: start, End: len(text)})
	}

	return tokens
}

// word strings in transcript order
func Words(tokens []Token) []string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Text
	}
	return words
}

// lowercases and strips everything but letters and digits, for fuzzy word comparison
func Normalize(word string) string {
	out := make([]rune, 0, utf8.RuneCountInString(word))
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}
