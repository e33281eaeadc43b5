package sqlite3dump

import (
	"fmt"
	"strings"

	"github.com/jordanwade90/sqlite3dump/internal/diag"
)

// schemaRootPage is where sqlite_schema (née sqlite_master) always lives.
const schemaRootPage uint32 = 1

// tableSchema is what loadSchema resolves for one sqlite_schema row whose
// type is "table".
type tableSchema struct {
	rootPage   uint32
	columns    []string
	rowidAlias int // index of the INTEGER PRIMARY KEY column, or -1
	parseErr   error // set if the CREATE TABLE text couldn't be tokenised
}

// loadSchema reads sqlite_schema once and caches the result on db. It is
// safe to call repeatedly; only the first call does any I/O.
func (db *DB) loadSchema() error {
	if db.schema != nil {
		return nil
	}

	schema := make(map[string]*tableSchema)
	it := db.newRowIter(schemaRootPage)
	for it.Next() {
		row := it.Row()
		if row.Len() < 5 {
			continue
		}
		typ, err := row.Text(0)
		if err != nil || typ != "table" {
			continue
		}
		name, err := row.Text(1)
		if err != nil {
			continue
		}
		rootPage, err := row.Int(3)
		if err != nil {
			continue
		}

		var sqlText string
		if !row.IsNull(4) {
			sqlText, _ = row.Text(4)
		}
		cols, rowidAlias, parseErr := parseColumnNames(sqlText)
		if parseErr != nil {
			parseErr = &SchemaError{Table: name, Reason: parseErr.Error()}
		}

		schema[name] = &tableSchema{
			rootPage:   uint32(rootPage),
			columns:    cols,
			rowidAlias: rowidAlias,
			parseErr:   parseErr,
		}
		diag.Schema(name, uint32(rootPage), cols)
	}
	if it.Err() != nil {
		return it.Err()
	}

	db.schema = schema
	return nil
}

func (db *DB) resolveTable(name string) (*tableSchema, error) {
	if err := db.loadSchema(); err != nil {
		return nil, err
	}
	sch, ok := db.schema[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return sch, nil
}

// parseColumnNames extracts the column names from a CREATE TABLE
// statement's top-level column list, skipping table-level constraint
// clauses (CONSTRAINT, PRIMARY KEY, UNIQUE, CHECK, FOREIGN KEY). It is a
// light tokenizer, not a full SQL parser: it tracks quoting (", `, [ ])
// and parenthesis depth well enough to find column boundaries, and does
// not attempt to validate the rest of each column definition, beyond
// noticing an "INTEGER PRIMARY KEY" column, which SQLite treats as an
// alias for the rowid and so never actually stores a value for.
func parseColumnNames(sql string) ([]string, int, error) {
	open := findTopLevelOpenParen(sql)
	if open < 0 {
		return nil, -1, fmt.Errorf("no top-level column list found")
	}

	depth := 0
	end := -1
	i := open
	for i < len(sql) {
		switch sql[i] {
		case '"', '\'', '`':
			i = skipQuoted(sql, i, sql[i])
			continue
		case '[':
			i = skipBracket(sql, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
		i++
	}
	if end < 0 {
		return nil, -1, fmt.Errorf("unterminated column list")
	}

	var cols []string
	rowidAlias := -1
	for _, def := range splitTopLevel(sql[open+1 : end]) {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		ident := readIdentifier(def)
		if ident == "" || isConstraintKeyword(ident) {
			continue
		}
		if isIntegerPrimaryKey(def) && rowidAlias < 0 {
			rowidAlias = len(cols)
		}
		cols = append(cols, ident)
	}
	return cols, rowidAlias, nil
}

// isIntegerPrimaryKey reports whether a column definition declares type
// INTEGER and PRIMARY KEY, which makes the column a rowid alias: SQLite
// stores NULL in its record slot and the true value is the cell's rowid.
func isIntegerPrimaryKey(def string) bool {
	upper := strings.ToUpper(def)
	return strings.Contains(upper, "INTEGER") &&
		strings.Contains(upper, "PRIMARY") && strings.Contains(upper, "KEY")
}

// findTopLevelOpenParen returns the index of the first '(' not inside a
// quoted identifier or string literal.
func findTopLevelOpenParen(s string) int {
	i := 0
	for i < len(s) {
		switch s[i] {
		case '"', '\'', '`':
			i = skipQuoted(s, i, s[i])
			continue
		case '[':
			i = skipBracket(s, i)
			continue
		case '(':
			return i
		}
		i++
	}
	return -1
}

// splitTopLevel splits s on commas that appear at parenthesis depth 0 and
// outside any quoting, so that column definitions containing their own
// (...) (e.g. a CHECK clause) are not split apart.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	i := 0
	for i < len(s) {
		switch s[i] {
		case '"', '\'', '`':
			i = skipQuoted(s, i, s[i])
			continue
		case '[':
			i = skipBracket(s, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
		i++
	}
	parts = append(parts, s[start:])
	return parts
}

// skipQuoted returns the index just past a quoted span starting at s[i]
// (s[i] == q), honoring the SQL convention of a doubled quote as an
// escaped literal quote character.
func skipQuoted(s string, i int, q byte) int {
	i++
	for i < len(s) {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

// skipBracket returns the index just past a [bracketed identifier]
// starting at s[i] (s[i] == '[').
func skipBracket(s string, i int) int {
	i++
	for i < len(s) && s[i] != ']' {
		i++
	}
	if i < len(s) {
		i++
	}
	return i
}

// readIdentifier reads the leading identifier of a column definition,
// whether quoted or bare.
func readIdentifier(def string) string {
	if def == "" {
		return ""
	}
	switch def[0] {
	case '"', '`':
		end := skipQuoted(def, 0, def[0])
		inner := def[1:]
		if end-1 <= len(inner) {
			inner = def[1 : end-1]
		}
		return strings.ReplaceAll(inner, string(def[0])+string(def[0]), string(def[0]))
	case '[':
		end := skipBracket(def, 0)
		if end-1 >= 1 && end-1 <= len(def) {
			return def[1 : end-1]
		}
		return ""
	default:
		j := 0
		for j < len(def) && isIdentChar(def[j]) {
			j++
		}
		return def[:j]
	}
}

func isIdentChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

var constraintKeywords = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"FOREIGN":    true,
}

func isConstraintKeyword(ident string) bool {
	return constraintKeywords[strings.ToUpper(ident)]
}
