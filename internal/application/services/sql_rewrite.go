package services

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// GeneratedRowLimit caps every generated statement
const GeneratedRowLimit = 20

var (
	selectListPattern = regexp.MustCompile(`(?is)^(SELECT\s+(?:DISTINCT\s+)?)(.*?)(\s+FROM\s)`)
	imageColumnInList = regexp.MustCompile(`(?i)\bimage_gcs_uri\b`)
	limitKeyword      = regexp.MustCompile(`(?i)\bLIMIT\b`)
	leadingKeyword    = regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)
)

// Reasons a generated statement is refused before execution.
var (
	ErrNotReadQuery        = errors.New("generated SQL must start with SELECT or WITH")
	ErrMultipleStatements  = errors.New("generated SQL must be a single statement")
	ErrUnterminatedLiteral = errors.New("generated SQL has an unterminated string literal")
)

// RewriteGeneratedSQL prepares a statement produced by the database's
// natural language function for execution: trailing semicolons go, the image
// column is selected first when missing, and every LIMIT becomes the row cap.
func RewriteGeneratedSQL(generated string) string {
	statement := strings.TrimSpace(generated)
	statement = strings.TrimSpace(strings.TrimRight(statement, "; \t\r\n"))

	if m := selectListPattern.FindStringSubmatchIndex(statement); m != nil {
		list := strings.TrimSpace(statement[m[4]:m[5]])
		if list != "*" && !imageColumnInList.MatchString(list) {
			statement = statement[:m[4]] + "image_gcs_uri, " + statement[m[4]:]
		}
	}

	return capLimits(statement)
}

// capLimits rewrites every LIMIT clause outside quotes to the row cap and
// appends one when the statement has none.
func capLimits(statement string) string {
	capped := "LIMIT " + strconv.Itoa(GeneratedRowLimit)
	masked := maskQuoted(statement)

	matches := limitKeyword.FindAllStringIndex(masked, -1)
	if len(matches) == 0 {
		return statement + " " + capped
	}

	// Back to front so earlier offsets stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		start := matches[i][0]
		end := limitExprEnd(masked, matches[i][1])
		statement = statement[:start] + capped + statement[end:]
	}
	return statement
}

// limitExprEnd returns the offset just past the expression that follows a
// LIMIT keyword ending at pos. Operands joined by arithmetic operators are
// consumed as one expression.
func limitExprEnd(masked string, pos int) int {
	end := pos
	i := skipSQLSpace(masked, pos)
	for i < len(masked) {
		next := operandEnd(masked, i)
		if next == i {
			break
		}
		end = next
		i = skipSQLSpace(masked, next)
		if i >= len(masked) || !strings.ContainsRune("+-*/%", rune(masked[i])) {
			break
		}
		i = skipSQLSpace(masked, i+1)
	}
	return end
}

// operandEnd consumes one parenthesized group or bare token starting at i.
func operandEnd(masked string, i int) int {
	if masked[i] == '(' {
		depth := 0
		for j := i; j < len(masked); j++ {
			switch masked[j] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return j + 1
				}
			}
		}
		return len(masked)
	}
	j := i
	for j < len(masked) && isExprChar(masked[j]) {
		j++
	}
	return j
}

func skipSQLSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

// maskQuoted blanks the contents of string literals and quoted identifiers
// while keeping every offset in place.
func maskQuoted(statement string) string {
	masked := []byte(statement)
	var quote byte
	for i := 0; i < len(masked); i++ {
		c := masked[i]
		switch {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
			masked[i] = ' '
		}
	}
	return string(masked)
}

func isExprChar(c byte) bool {
	return c == '_' || c == '$' || c == '.' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ValidateReadOnly refuses anything but one SELECT or WITH statement.
// The statement still runs inside a read only transaction.
func ValidateReadOnly(statement string) error {
	trimmed := strings.TrimSpace(statement)
	if !leadingKeyword.MatchString(trimmed) {
		return ErrNotReadQuery
	}

	inQuote := false
	for i := 0; i < len(trimmed); i++ {
		switch trimmed[i] {
		case '\'':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return ErrMultipleStatements
			}
		}
	}
	if inQuote {
		return ErrUnterminatedLiteral
	}
	return nil
}
