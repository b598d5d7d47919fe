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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQLStatementsHandlesDollarQuotedBlocks(t *testing.T) {
	content := `
-- Enable extension
CREATE TABLE IF NOT EXISTS a (id TEXT);

DO $$
BEGIN
    PERFORM set_config('search_path', 'hive', false);
END $$;

SELECT 1;
`

	statements := splitSQLStatements(content)
	require.Len(t, statements, 3)
	assert.True(t, strings.HasPrefix(statements[1], "DO"))
	assert.Equal(t, "SELECT 1", statements[2])
}

func TestSplitSQLStatementsIgnoresSemicolonsInQuotes(t *testing.T) {
	statements := splitSQLStatements(`INSERT INTO audit_logs(action) VALUES('a;b');
/* block; comment */ SELECT 2;`)

	require.Len(t, statements, 2)
	assert.True(t, strings.HasPrefix(statements[0], "INSERT"))
	assert.Equal(t, "SELECT 2", statements[1])
}

func TestEmbeddedMigrationsSplitCleanly(t *testing.T) {
	files, err := pendingFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		content, err := migrationsFS.ReadFile("migrations/" + name)
		require.NoError(t, err)
		assert.NotEmpty(t, splitSQLStatements(string(content)), name)
		assert.Len(t, migrationVersion(name), 14, name)
	}
}

func TestRebindSkipsLiteralsAndComments(t *testing.T) {
	q := `SELECT '?' AS q, "a?b" FROM t /* ? */ WHERE a = ? -- trailing ?
AND b = ?`

	assert.Equal(t, `SELECT '?' AS q, "a?b" FROM t /* ? */ WHERE a = $1 -- trailing ?
AND b = $2`, Rebind("postgres", q))
}

func TestSQLLexerTokens(t *testing.T) {
	lex := &sqlLexer{src: `a = 'it''s'; $body$ x; $body$ $1`}

	var kinds []sqlTokenKind

	var texts []string

	for tok, ok := lex.next(); ok; tok, ok = lex.next() {
		kinds = append(kinds, tok.kind)
		texts = append(texts, tok.text)
	}

	assert.Equal(t, "a = 'it''s'; $body$ x; $body$ $1", strings.Join(texts, ""))
	assert.Contains(t, texts, "'it''s'")
	assert.Contains(t, texts, "$body$ x; $body$")
	assert.Contains(t, kinds, tokQuoted)
}
