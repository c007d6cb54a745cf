package flatten

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// JoinKeys pairs up the key columns of the left and right tables. Left[i] is
// matched against Right[i], names are never assumed to be equal.
type JoinKeys struct {
	Left  []string
	Right []string
}

// AnalysisKeys joins survey details to survey responses. Details call the
// matrix row identifier rows_id while responses call it row_id.
var AnalysisKeys = JoinKeys{
	Left:  []string{"question_id", "choice_id", "survey_id", "rows_id"},
	Right: []string{"question_id", "choice_id", "survey_id", "row_id"},
}

const DefaultMinMatchRatio = 0.5

type JoinOptions struct {
	// below MinMatchRatio * (rows of the smaller input) a JoinKeyMismatchError
	// is reported with the result, 0 means DefaultMinMatchRatio
	MinMatchRatio float64
}

type JoinResult struct {
	Table *Table
	// advisory, nil when the join looks healthy. Join does not log it,
	// reporting is up to the caller.
	Mismatch *JoinKeyMismatchError
}

// AnalysisJoin maps every response row back to its question and choice.
func AnalysisJoin(ctx context.Context, details, responses *Table) (JoinResult, error) {
	return Join(ctx, details, responses, AnalysisKeys, JoinOptions{})
}

// Join is an inner join. Rows without a partner on the other side are
// dropped, duplicate keys fan out. Null keys match null keys.
func Join(ctx context.Context, left, right *Table, keys JoinKeys, opts JoinOptions) (JoinResult, error) {
	ctx, span := tracer.Start(ctx, "Join")
	defer span.End()

	if len(keys.Left) == 0 || len(keys.Left) != len(keys.Right) {
		return JoinResult{}, fmt.Errorf(
			"join needs the same non-zero number of keys on both sides, got %d and %d",
			len(keys.Left), len(keys.Right),
		)
	}
	ratio := opts.MinMatchRatio
	if ratio <= 0 {
		ratio = DefaultMinMatchRatio
	}

	// key pairs with the same name collapse into one output column
	shared := map[string]struct{}{}
	for i := range keys.Left {
		if keys.Left[i] == keys.Right[i] {
			shared[keys.Left[i]] = struct{}{}
		}
	}
	overlap := map[string]struct{}{}
	for _, c := range left.columns {
		if _, ok := shared[c]; ok {
			continue
		}
		if right.HasColumn(c) {
			overlap[c] = struct{}{}
		}
	}
	leftName := func(c string) string {
		if _, ok := overlap[c]; ok {
			return c + "_x"
		}
		return c
	}
	rightName := func(c string) string {
		if _, ok := shared[c]; ok {
			return ""
		}
		if _, ok := overlap[c]; ok {
			return c + "_y"
		}
		return c
	}

	out := NewTable()
	for _, c := range left.columns {
		out.addColumn(leftName(c))
	}
	for _, c := range right.columns {
		if name := rightName(c); name != "" {
			out.addColumn(name)
		}
	}

	index := map[string][]int{}
	for i, r := range right.rows {
		k := joinKey(r, keys.Right)
		index[k] = append(index[k], i)
	}

	for _, l := range left.rows {
		for _, ri := range index[joinKey(l, keys.Left)] {
			r := right.rows[ri]
			row := make(Row, len(l)+len(r))
			for k, v := range l {
				row[leftName(k)] = v
			}
			for k, v := range r {
				name := rightName(k)
				if name == "" {
					continue
				}
				row[name] = v
			}
			out.rows = append(out.rows, row)
		}
	}

	result := JoinResult{Table: out}
	smaller := min(left.Len(), right.Len())
	if smaller > 0 && float64(out.Len()) < ratio*float64(smaller) {
		result.Mismatch = &JoinKeyMismatchError{
			LeftRows:   left.Len(),
			RightRows:  right.Len(),
			MergedRows: out.Len(),
			MinRatio:   ratio,
		}
	}

	span.SetAttributes(
		attribute.Int("left_rows", left.Len()),
		attribute.Int("right_rows", right.Len()),
		attribute.Int("merged_rows", out.Len()),
		attribute.Bool("key_mismatch", result.Mismatch != nil),
	)
	rowCounter.Add(ctx, int64(out.Len()), tableAttr("merged"))
	return result, nil
}

func joinKey(row Row, columns []string) string {
	var out strings.Builder
	for _, c := range columns {
		v, ok := row[c]
		if !ok || v == nil {
			out.WriteString("\x00")
		} else {
			out.WriteString("\x01")
			out.WriteString(FormatValue(v))
		}
		out.WriteString("\x1f")
	}
	return out.String()
}
