// Package sql guards the ad hoc read path: single-statement, read-only SQL
// with injection-checked bind values.
package sql

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyQuery indicates the query is blank once comments and whitespace are removed.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrNotReadOnly indicates the statement does not begin with a read keyword.
	ErrNotReadOnly = errors.New("only SELECT, WITH, VALUES and EXPLAIN statements are allowed")
)

// readKeywords are the leading keywords accepted by ValidateReadOnly.
// PRAGMA is rejected in every form, including reads.
var readKeywords = []string{"SELECT", "WITH", "VALUES", "EXPLAIN"}

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside literals and comments)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// ValidateReadOnly normalizes sqlQuery and rejects anything that is not a
// single read statement. The connection running the query is also switched
// to query_only mode, so this is the first of two gates.
func ValidateReadOnly(sqlQuery string) ValidationResult {
	result := ValidateAndNormalize(sqlQuery)
	if result.Error != nil {
		return result
	}

	keyword := leadingKeyword(result.NormalizedSQL)
	if keyword == "" {
		return ValidationResult{Error: ErrEmptyQuery}
	}
	for _, k := range readKeywords {
		if keyword == k {
			return result
		}
	}
	return ValidationResult{Error: ErrNotReadOnly}
}

// leadingKeyword returns the first word of the statement, upper-cased,
// skipping whitespace, comments and opening parentheses.
func leadingKeyword(sqlQuery string) string {
	s := sqlQuery
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = s[idx+1:]
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s[2:], "*/")
			if idx < 0 {
				return ""
			}
			s = s[idx+4:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals, quoted identifiers and comments.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch {
			case char == ';':
				return true
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			case char == '-' && prevChar == '-':
				state = stateLineComment
			case char == '*' && prevChar == '/':
				state = stateBlockComment
				char = 0 // "/*/" must not close the comment
			}
		case stateSingleQuote:
			// SQL standard doubled quote ('') exits and immediately re-enters
			if char == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if char == '/' && prevChar == '*' {
				state = stateNormal
				char = 0
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")

	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}

	return sqlQuery
}
