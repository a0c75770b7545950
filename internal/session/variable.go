package session

import (
	"fmt"
	"regexp"
	"strings"
)

var variableRef = regexp.MustCompile(`(^|[^A-Za-z0-9_])@([A-Za-z_][A-Za-z0-9_]*)`)

// bindVariables replaces every "@name" token in sql with the SQL
// literal for that name's registered Variable, the DuckDB-native
// equivalent of the embedded engine's VarProvider hook the original
// implementation registers at planning time
// (original_source/lib/src/context/variable.rs). Tokens with no
// matching variable are left untouched. An "@" directly preceded by a
// letter, digit or underscore does not start a variable token, so the
// "<table>@<namespace>" names Context.resolveExternal produces (quoted
// or not) are never mistaken for one.
func (c *Context) bindVariables(sql string) string {
	vars := c.Variables()
	if len(vars) == 0 {
		return sql
	}

	return variableRef.ReplaceAllStringFunc(sql, func(tok string) string {
		at := strings.IndexByte(tok, '@')

		v, ok := vars[tok[at+1:]]
		if !ok {
			return tok
		}

		return tok[:at] + literalFor(v)
	})
}

func literalFor(v Variable) string {
	if v.Value == nil {
		return "NULL"
	}

	switch val := v.Value.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", val), "'", "''") + "'"
	}
}
