/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"strings"
)

type sqlTokenKind int

const (
	tokCode sqlTokenKind = iota
	tokQuoted
	tokComment
)

// sqlSpecial starts a token that may not be plain code.
const sqlSpecial = "-/'\"$;?"

type sqlToken struct {
	text string
	kind sqlTokenKind
}

// sqlLexer splits SQL text into code, quoted and comment tokens. Quoted
// covers string literals, quoted identifiers and dollar-quoted bodies.
// Semicolons and question marks in code are always single-byte tokens.
type sqlLexer struct {
	src string
	pos int
}

func (l *sqlLexer) next() (sqlToken, bool) {
	if l.pos >= len(l.src) {
		return sqlToken{}, false
	}

	start := l.pos
	rest := l.src[start:]

	switch {
	case strings.HasPrefix(rest, "--"):
		end := strings.IndexByte(rest, '\n')
		if end < 0 {
			end = len(rest)
		}

		l.pos += end

		return sqlToken{text: rest[:end], kind: tokComment}, true
	case strings.HasPrefix(rest, "/*"):
		end := strings.Index(rest[2:], "*/")
		if end < 0 {
			l.pos = len(l.src)
		} else {
			l.pos += end + 4
		}

		return sqlToken{text: l.src[start:l.pos], kind: tokComment}, true
	case rest[0] == '\'' || rest[0] == '"':
		l.pos += quotedLen(rest)

		return sqlToken{text: l.src[start:l.pos], kind: tokQuoted}, true
	case rest[0] == '$':
		if tag := dollarTag(rest); tag != "" {
			end := strings.Index(rest[len(tag):], tag)
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += 2*len(tag) + end
			}

			return sqlToken{text: l.src[start:l.pos], kind: tokQuoted}, true
		}
	}

	n := 1
	if strings.IndexByte(sqlSpecial, rest[0]) < 0 {
		n = strings.IndexAny(rest, sqlSpecial)
		if n < 0 {
			n = len(rest)
		}
	}

	l.pos += n

	return sqlToken{text: rest[:n], kind: tokCode}, true
}

// quotedLen returns the length of the quoted run at the start of s, with
// doubled quotes treated as escapes. Unterminated runs take the rest of s.
func quotedLen(s string) int {
	q := s[0]

	for i := 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}

		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}

		return i + 1
	}

	return len(s)
}

// dollarTag returns "$$" or "$name$" at the start of s, or "" when s starts
// with a positional parameter or a lone dollar.
func dollarTag(s string) string {
	for i := 1; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '$':
			return s[:i+1]
		case c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
		case '0' <= c && c <= '9' && i > 1:
		default:
			return ""
		}
	}

	return ""
}

// splitSQLStatements breaks a migration file into statements, dropping
// comments and empty statements.
func splitSQLStatements(content string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}

		current.Reset()
	}

	lex := &sqlLexer{src: content}

	for tok, ok := lex.next(); ok; tok, ok = lex.next() {
		switch {
		case tok.kind == tokComment:
		case tok.kind == tokCode && tok.text == ";":
			flush()
		default:
			current.WriteString(tok.text)
		}
	}

	flush()

	return statements
}
