package filter

import "strings"

// tokenize splits an expression on whitespace. Parentheses are always tokens
// of their own, so "(vlan 4)" and "( vlan 4 )" are equivalent.
func tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		start := 0
		for i := 0; i < len(word); i++ {
			if word[i] != '(' && word[i] != ')' {
				continue
			}
			if i > start {
				tokens = append(tokens, word[start:i])
			}
			tokens = append(tokens, word[i:i+1])
			start = i + 1
		}
		if start < len(word) {
			tokens = append(tokens, word[start:])
		}
	}
	return tokens
}

// joinTokens is strings.Join(parts, " ") without the blanks just inside
// parentheses.
func joinTokens(parts []string) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 && parts[i-1] != "(" && part != ")" {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	return b.String()
}
