// Package merge implements the Merge Executor (C8): row-union and
// column-join programs executed against a session.Context's embedded
// engine via plain SQL, following spec.md §4.7's five-step algorithm.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/session"
)

// Direction is the closed set of merge directions.
type Direction int

const (
	Row Direction = iota
	Column
)

// ColumnTarget is one column-join target: {table, base_keys, target_keys}.
type ColumnTarget struct {
	Table      string
	BaseKeys   []string
	TargetKeys []string
}

// Options controls distinct row-union semantics and post-merge
// cleanup.
type Options struct {
	Distinct          bool
	RemoveAfterMerged bool
}

// Program is a MergeProgram per spec.md's glossary.
type Program struct {
	Direction     Direction
	BaseTable     string
	RowTargets    []string
	ColumnTargets []ColumnTarget
	Options       Options
}

// Validate enforces the invariants spec.md §4.7 calls out: an empty
// target list for the chosen direction, and mismatched key vector
// lengths on a column target, are both validation errors.
func (p Program) Validate() error {
	switch p.Direction {
	case Row:
		if len(p.RowTargets) == 0 {
			return apperr.RequestValidation("row merge requires at least one row target")
		}
	case Column:
		if len(p.ColumnTargets) == 0 {
			return apperr.RequestValidation("column merge requires at least one column target")
		}

		for _, t := range p.ColumnTargets {
			if len(t.BaseKeys) != len(t.TargetKeys) {
				return apperr.RequestValidation("column target %q: base_keys and target_keys must have equal length", t.Table)
			}
		}
	}

	return nil
}

// Execute runs p against sc's catalog.
func Execute(ctx context.Context, sc *session.Context, p Program) error {
	if err := p.Validate(); err != nil {
		return err
	}

	switch p.Direction {
	case Row:
		return executeRow(ctx, sc, p)
	case Column:
		return executeColumn(ctx, sc, p)
	default:
		return apperr.RequestValidation("unknown merge direction")
	}
}

// executeRow builds base := base UNION [ALL] target for each row
// target in turn, then deregisters and re-registers the base table
// under the same name from the concatenated result.
func executeRow(ctx context.Context, sc *session.Context, p Program) error {
	op := "UNION ALL"
	if p.Options.Distinct {
		op = "UNION"
	}

	selects := make([]string, 0, len(p.RowTargets)+1)
	selects = append(selects, fmt.Sprintf("SELECT * FROM %s", quote(p.BaseTable)))

	for _, t := range p.RowTargets {
		selects = append(selects, fmt.Sprintf("SELECT * FROM %s", quote(t)))
	}

	query := strings.Join(selects, fmt.Sprintf(" %s ", op))

	if err := rematerialize(ctx, sc, p.BaseTable, query); err != nil {
		return err
	}

	if p.Options.RemoveAfterMerged {
		for _, t := range p.RowTargets {
			if err := sc.RemoveDataSource(t); err != nil {
				return err
			}
		}
	}

	return nil
}

// executeColumn implements spec.md §4.7's five-step column-join
// algorithm. Base and target schemas are fetched by querying their
// registered tables' metadata through the engine rather than
// inspecting the original DataSource descriptor, so the merge also
// works on tables produced by a previous merge.
func executeColumn(ctx context.Context, sc *session.Context, p Program) error {
	baseFields, err := describe(ctx, sc, p.BaseTable)
	if err != nil {
		return err
	}

	for _, t := range p.ColumnTargets {
		targetFields, err := describe(ctx, sc, t.Table)
		if err != nil {
			return err
		}

		baseNames := toSet(baseFields)

		projected := make([]string, 0, len(targetFields))
		renamed := make(map[string]string)

		for _, f := range targetFields {
			if baseNames[f] {
				alias := fmt.Sprintf("%s_%s", t.Table, f)
				projected = append(projected, fmt.Sprintf("%s AS %s", quote(f), quote(alias)))
				renamed[f] = alias
			} else {
				projected = append(projected, quote(f))
			}
		}

		rewrittenTargetKeys := make([]string, len(t.TargetKeys))
		for i, k := range t.TargetKeys {
			if alias, ok := renamed[k]; ok {
				rewrittenTargetKeys[i] = alias
			} else {
				rewrittenTargetKeys[i] = k
			}
		}

		joinConds := make([]string, len(t.BaseKeys))
		for i := range t.BaseKeys {
			joinConds[i] = fmt.Sprintf("base.%s = target.%s", quote(t.BaseKeys[i]), quote(rewrittenTargetKeys[i]))
		}

		finalCols := make([]string, 0, len(baseFields)+len(targetFields))
		for _, f := range baseFields {
			finalCols = append(finalCols, fmt.Sprintf("base.%s", quote(f)))
		}

		targetKeySet := toSet(t.TargetKeys)
		for _, f := range targetFields {
			if targetKeySet[f] {
				continue
			}

			outName := f
			if alias, ok := renamed[f]; ok {
				outName = alias
			}

			finalCols = append(finalCols, fmt.Sprintf("target.%s", quote(outName)))
		}

		query := fmt.Sprintf(
			"SELECT %s FROM %s AS base INNER JOIN (SELECT %s FROM %s) AS target ON %s",
			strings.Join(finalCols, ", "),
			quote(p.BaseTable),
			strings.Join(projected, ", "),
			quote(t.Table),
			strings.Join(joinConds, " AND "),
		)

		if err := rematerialize(ctx, sc, p.BaseTable, query); err != nil {
			return err
		}

		baseFields = append(baseFields, nonKeyFields(targetFields, t.TargetKeys, renamed)...)
	}

	if p.Options.RemoveAfterMerged {
		for _, t := range p.ColumnTargets {
			if err := sc.RemoveDataSource(t.Table); err != nil {
				return err
			}
		}
	}

	return nil
}

func nonKeyFields(fields, keys []string, renamed map[string]string) []string {
	keySet := toSet(keys)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if keySet[f] {
			continue
		}

		if alias, ok := renamed[f]; ok {
			out = append(out, alias)
		} else {
			out = append(out, f)
		}
	}

	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}

	return set
}

// describe returns table's field names in schema order by running a
// zero-row SELECT through the engine and reading the result schema.
func describe(ctx context.Context, sc *session.Context, table string) ([]string, error) {
	reader, err := sc.ExecuteLogicalPlan(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quote(table)))
	if err != nil {
		return nil, apperr.DataFusion(fmt.Errorf("describe %q: %w", table, err))
	}

	fields := reader.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	return names, nil
}

// rematerialize runs query, deregisters name, and re-registers the
// result under name — the "deregister and re-register from the
// concatenated result under the same name" step both merge directions
// share.
func rematerialize(ctx context.Context, sc *session.Context, name, query string) error {
	reader, err := sc.ExecuteLogicalPlan(ctx, query)
	if err != nil {
		return apperr.DataFusion(fmt.Errorf("execute merge query for %q: %w", name, err))
	}

	if err := sc.Engine().Deregister(name); err != nil {
		return apperr.RecordBatch(fmt.Errorf("deregister %q before re-registration: %w", name, err))
	}

	if err := sc.Engine().RegisterRecord(name, reader.Records()); err != nil {
		return apperr.RecordBatch(fmt.Errorf("re-register %q: %w", name, err))
	}

	return nil
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
