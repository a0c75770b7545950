package externaldb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
)

// namespaceSuffix matches an identifier token immediately followed by
// "@namespace", so the rewriter can strip it while re-quoting the
// identifier exactly as the source token appeared (spec.md §9).
var namespaceSuffix = regexp.MustCompile(`([\w."]+)@(\w+)`)

// RewriteStatement strips every "@namespace" suffix from table
// references in stmt and returns the plain statement plus the one
// namespace the stripped references belonged to. Multiple distinct
// namespaces in one statement are
// rejected — a single INSERT/UPDATE targets exactly one external
// table.
func RewriteStatement(stmt string) (plain string, namespace string, err error) {
	matches := namespaceSuffix.FindAllStringSubmatch(stmt, -1)
	if len(matches) == 0 {
		return stmt, "", apperr.RequestValidation("statement has no @namespace-qualified table reference")
	}

	namespace = matches[0][2]
	for _, m := range matches {
		if m[2] != namespace {
			return "", "", apperr.RequestValidation("statement references multiple namespaces (%q and %q)", namespace, m[2])
		}
	}

	plain = namespaceSuffix.ReplaceAllString(stmt, "$1")

	return plain, namespace, nil
}

// Reference is one "@namespace"-qualified table token found in a
// statement by FindReferences.
type Reference struct {
	Token     string // the exact substring matched in the statement, e.g. `"orders"@erp`
	Table     string // the unquoted table identifier, e.g. orders
	Namespace string
}

// FindReferences scans stmt for every distinct "@namespace"-qualified
// table reference, deduplicated by (table, namespace) so a table
// joined against itself or referenced twice only resolves once.
// Unlike RewriteStatement, it allows any number of distinct
// namespaces in a single statement, since a read-only query may join
// several external tables across namespaces where an INSERT/UPDATE
// never targets more than one.
func FindReferences(stmt string) []Reference {
	matches := namespaceSuffix.FindAllStringSubmatch(stmt, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	refs := make([]Reference, 0, len(matches))

	for _, m := range matches {
		table := strings.Trim(m[1], `"`)
		key := table + "@" + m[2]
		if seen[key] {
			continue
		}

		seen[key] = true
		refs = append(refs, Reference{Token: m[0], Table: table, Namespace: m[2]})
	}

	return refs
}

// QuoteReferences rewrites every ref's original token in stmt to a
// single quoted "table@namespace" identifier, the literal name the
// resolved table is registered under in the embedded engine so the
// statement can execute unmodified once that registration exists.
func QuoteReferences(stmt string, refs []Reference) string {
	for _, ref := range refs {
		quoted := `"` + ref.Table + "@" + ref.Namespace + `"`
		stmt = strings.ReplaceAll(stmt, ref.Token, quoted)
	}

	return stmt
}

// builderFor returns the squirrel.StatementBuilderType configured for
// engine's placeholder style: positional "$1" for Postgres, "?" for
// MySQL.
func builderFor(engine Engine) squirrel.StatementBuilderType {
	if engine == Postgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}

	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// Insert builds and executes an INSERT against provider's table
// inside a transaction that commits on success and rolls back on any
// error, including a failure partway through binding a row.
func (p *TableProvider) Insert(ctx context.Context, db *sql.DB, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.DataFusion(fmt.Errorf("begin transaction for %q: %w", p.Table, err))
	}

	builder := builderFor(p.Engine)

	for _, row := range rows {
		cols := make([]string, 0, len(row))
		vals := make([]any, 0, len(row))

		for _, f := range p.Schema.Fields {
			v, ok := row[f.Name]
			if !ok {
				continue
			}

			cols = append(cols, quoteIdentifier(f.Name))
			vals = append(vals, v)
		}

		query, args, err := builder.Insert(quoteIdentifier(p.Table)).Columns(cols...).Values(vals...).ToSql()
		if err != nil {
			_ = tx.Rollback()
			return apperr.DataFusion(fmt.Errorf("build insert for %q: %w", p.Table, err))
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return apperr.DataFusion(fmt.Errorf("insert into %q: %w", p.Table, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.DataFusion(fmt.Errorf("commit insert into %q: %w", p.Table, err))
	}

	return nil
}

func quoteIdentifier(name string) string {
	if strings.HasPrefix(name, `"`) {
		return name
	}

	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
