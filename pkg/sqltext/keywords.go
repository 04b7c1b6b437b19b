package sqltext

import "strings"

// keywords can never be table names, aliases, or column names.
var keywords = makeSet(
	"SELECT", "FROM", "WHERE", "GROUP", "BY", "ORDER", "HAVING", "LIMIT", "OFFSET",
	"JOIN", "ON", "AS", "AND", "OR", "NOT", "IN", "IS", "NULL", "CASE", "WHEN",
	"THEN", "ELSE", "END", "DISTINCT", "ALL", "UNION", "EXCEPT", "INTERSECT",
	"WITH", "RECURSIVE", "MATERIALIZED", "VIEW", "TABLE", "CREATE", "DROP",
	"ALTER", "TRUNCATE", "INSERT", "UPDATE", "DELETE", "DEFAULT", "PRIMARY",
	"KEY", "FOREIGN", "REFERENCES", "CONSTRAINT", "INDEX", "CHECK", "DISTSTYLE",
	"DISTKEY", "SORTKEY", "COMPOUND", "INTERLEAVED", "EVEN", "AUTO", "REFRESH",
	"BACKUP", "ENCODING", "LATERAL", "WINDOW", "QUALIFY", "OVER", "UNNEST", "APPLY",
	"TOP", "COUNT", "MIN", "MAX", "AVG", "SUM",
	"LEAD", "LAG", "PARTITION", "RANK", "DENSE_RANK", "ROW_NUMBER",
	"FIRST_VALUE", "LAST_VALUE", "NTH_VALUE", "COALESCE", "ABS", "DRIFT", "STABLE",
	// join and predicate vocabulary
	"INNER", "LEFT", "RIGHT", "FULL", "OUTER", "CROSS", "NATURAL", "USING",
	"EXISTS", "BETWEEN", "LIKE", "ILIKE", "ASC", "DESC", "INTO", "VALUES",
	"FETCH", "FOR", "TRUE", "FALSE", "CAST", "INTERVAL", "ANY", "SOME",
	"RETURNING", "PIVOT", "UNPIVOT", "TABLESAMPLE", "SEMI", "ANTI", "ASOF",
	"POSITIONAL",
)

// expressionWords look like identifiers inside expressions but never name a
// column: date parts, niladic functions, window-frame vocabulary.
var expressionWords = makeSet(
	"YEAR", "MONTH", "DAY", "HOUR", "MINUTE", "SECOND", "WEEK", "QUARTER",
	"EPOCH", "DOW", "DOY", "MILLISECOND", "MICROSECOND", "DAYOFWEEK", "DAYOFYEAR",
	"CURRENT_DATE", "CURRENT_TIME", "CURRENT_TIMESTAMP", "CURRENT_USER",
	"LOCALTIME", "LOCALTIMESTAMP", "SESSION_USER", "SYSDATE", "SYSTIMESTAMP",
	"AT", "TIME", "ZONE", "ESCAPE", "SIMILAR", "ROW", "ROWS", "RANGE", "GROUPS",
	"UNBOUNDED", "PRECEDING", "FOLLOWING", "CURRENT", "FILTER", "WITHIN",
	"IGNORE", "RESPECT", "NULLS", "FIRST", "LAST", "SEPARATOR", "COLLATE",
	"BOTH", "LEADING", "TRAILING", "PLACING", "OF", "GROUPING", "SETS", "CUBE",
	"ROLLUP",
)

// calcWords mark a projection as calculated even without operators.
var calcWords = makeSet(
	"CASE", "OVER", "RANK", "LEAD", "LAG", "PARTITION", "COALESCE", "ABS", "NTILE",
	"ROW_NUMBER", "SUM", "COUNT", "AVG", "MIN", "MAX", "QUALIFY", "ARRAY", "UNNEST",
	"CAST", "EXTRACT", "INTERVAL", "DISTINCT",
)

// fromCallers are functions whose argument syntax contains FROM.
var fromCallers = makeSet("EXTRACT", "SUBSTRING", "TRIM", "OVERLAY")

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, word string) bool {
	_, ok := set[strings.ToUpper(word)]
	return ok
}

// IsKeyword reports whether word is reserved (case-insensitive).
func IsKeyword(word string) bool {
	return inSet(keywords, word)
}

// IsExpressionWord reports whether word is expression vocabulary that never
// names a column.
func IsExpressionWord(word string) bool {
	return inSet(expressionWords, word)
}

// IsCalcWord reports whether word marks an expression as calculated.
func IsCalcWord(word string) bool {
	return inSet(calcWords, word)
}

// IsFromCaller reports whether word is a function using FROM in its arguments.
func IsFromCaller(word string) bool {
	return inSet(fromCallers, word)
}
