// Package sql implements the "sql" transform driver: a deterministic
// subset of SQL, "SELECT <cols> FROM $N [WHERE <expr>]", evaluated against
// windowed batches of trains. Condition evaluation is grounded on the
// teacher's rule-expression evaluator (operator dispatch table, comparison
// semantics); tokenizing follows the shape of the teacher's parser package
// (one small Parser per format, Parse/Validate methods).
package sql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/transform"
	"github.com/data-tracks/DataTracks/value"
)

func init() {
	transform.Register("sql", func(query string) (transform.Driver, error) {
		return compile(query)
	})
}

// operator names conditions in a WHERE clause may use, grounded on the
// teacher's rule-expression OpEqual/OpNotEqual/.../OpContains constants.
type operator string

const (
	opEqual        operator = "="
	opNotEqual     operator = "!="
	opLessThan     operator = "<"
	opLessThanEq   operator = "<="
	opGreaterThan  operator = ">"
	opGreaterThanE operator = ">="
	opContains     operator = "CONTAINS"
	opStartsWith   operator = "STARTSWITH"
	opEndsWith     operator = "ENDSWITH"
)

type condition struct {
	lineID  uint32
	op      operator
	literal value.Value
}

// Driver is a compiled "SELECT <cols> FROM $N [WHERE <expr>]" query.
type Driver struct {
	columns    []uint32
	from       uint32
	conditions []condition
}

// compile parses query into a Driver. Grammar (case-sensitive keywords):
//
//	SELECT $1, $2 FROM $1 WHERE $2 > 10 AND $3 = "ok"
func compile(query string) (*Driver, error) {
	query = strings.TrimSpace(query)
	if !strings.HasPrefix(query, "SELECT ") {
		return nil, parseErr("query must start with SELECT")
	}
	rest := strings.TrimPrefix(query, "SELECT ")

	fromIdx := strings.Index(rest, " FROM ")
	if fromIdx < 0 {
		return nil, parseErr("missing FROM clause")
	}
	colsPart := rest[:fromIdx]
	rest = rest[fromIdx+len(" FROM "):]

	var wherePart string
	if whereIdx := strings.Index(rest, " WHERE "); whereIdx >= 0 {
		wherePart = rest[whereIdx+len(" WHERE "):]
		rest = rest[:whereIdx]
	}
	fromPart := strings.TrimSpace(rest)

	columns, err := parseColumns(colsPart)
	if err != nil {
		return nil, err
	}
	fromLine, err := parsePlaceholder(fromPart)
	if err != nil {
		return nil, fmt.Errorf("FROM clause: %w", err)
	}

	var conditions []condition
	if wherePart != "" {
		conditions, err = parseWhere(wherePart)
		if err != nil {
			return nil, err
		}
	}

	return &Driver{columns: columns, from: fromLine, conditions: conditions}, nil
}

func parseColumns(s string) ([]uint32, error) {
	parts := strings.Split(s, ",")
	cols := make([]uint32, 0, len(parts))
	for _, p := range parts {
		n, err := parsePlaceholder(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("SELECT clause: %w", err)
		}
		cols = append(cols, n)
	}
	return cols, nil
}

func parsePlaceholder(s string) (uint32, error) {
	if !strings.HasPrefix(s, "$") {
		return 0, parseErr(fmt.Sprintf("expected $N placeholder, got %q", s))
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "$"))
	if err != nil || n < 1 {
		return 0, parseErr(fmt.Sprintf("invalid placeholder %q", s))
	}
	return uint32(n), nil
}

func parseWhere(s string) ([]condition, error) {
	clauses := strings.Split(s, " AND ")
	conds := make([]condition, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		cond, err := parseCondition(clause)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

var orderedOps = []operator{opLessThanEq, opGreaterThanE, opNotEqual, opEqual, opLessThan, opGreaterThan, opContains, opStartsWith, opEndsWith}

func parseCondition(clause string) (condition, error) {
	for _, op := range orderedOps {
		idx := strings.Index(clause, string(op))
		if idx < 0 {
			continue
		}
		lhs := strings.TrimSpace(clause[:idx])
		rhsRaw := strings.TrimSpace(clause[idx+len(op):])
		lineID, err := parsePlaceholder(lhs)
		if err != nil {
			return condition{}, fmt.Errorf("WHERE clause: %w", err)
		}
		literal, err := parseLiteral(rhsRaw)
		if err != nil {
			return condition{}, fmt.Errorf("WHERE clause: %w", err)
		}
		return condition{lineID: lineID, op: op, literal: literal}, nil
	}
	return condition{}, parseErr(fmt.Sprintf("unrecognized condition %q", clause))
}

func parseLiteral(s string) (value.Value, error) {
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		return value.NewText(strings.Trim(s, `"`)), nil
	}
	if s == "true" || s == "false" {
		return value.NewBool(s == "true"), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.NewInt(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.NewFloat(int64(f*100), 2), nil
	}
	return value.Value{}, parseErr(fmt.Sprintf("unrecognized literal %q", s))
}

func parseErr(reason string) error {
	return errors.WrapInvalid(errors.ErrTransformFailed, "sql", "compile", reason)
}

// Run implements transform.Driver: it filters each wagon in the batch
// against the WHERE clause and projects it down to the SELECT columns.
// Trains whose every row is filtered out are omitted from the result.
func (d *Driver) Run(_ context.Context, batch []*value.Train) ([]*value.Train, error) {
	out := make([]*value.Train, 0, len(batch))
	for _, train := range batch {
		var keep []value.Wagon
		for _, w := range train.Wagons() {
			ok, err := d.matches(w)
			if err != nil {
				return nil, errors.WrapInvalid(err, "sql", "Run", "evaluate WHERE")
			}
			if ok {
				keep = append(keep, value.Project(w, d.columns))
			}
		}
		if len(keep) == 0 {
			continue
		}
		out = append(out, value.NewTrain(train.EventTS, train.OriginLine, keep))
	}
	return out, nil
}

func (d *Driver) matches(w value.Wagon) (bool, error) {
	for _, c := range d.conditions {
		v, ok := w.Get(c.lineID)
		if !ok {
			return false, nil
		}
		result, err := evaluate(v, c.op, c.literal)
		if err != nil {
			return false, err
		}
		if !result {
			return false, nil
		}
	}
	return true, nil
}

func evaluate(field value.Value, op operator, literal value.Value) (bool, error) {
	switch op {
	case opEqual:
		return field.Kind() == literal.Kind() && field.Equal(literal), nil
	case opNotEqual:
		return !(field.Kind() == literal.Kind() && field.Equal(literal)), nil
	case opLessThan, opLessThanEq, opGreaterThan, opGreaterThanE:
		if field.Kind() != literal.Kind() {
			return false, fmt.Errorf("sql: cannot compare %s to %s", field.Kind(), literal.Kind())
		}
		c := field.Compare(literal)
		switch op {
		case opLessThan:
			return c < 0, nil
		case opLessThanEq:
			return c <= 0, nil
		case opGreaterThan:
			return c > 0, nil
		case opGreaterThanE:
			return c >= 0, nil
		}
	case opContains, opStartsWith, opEndsWith:
		fieldText, ok1 := field.Text()
		literalText, ok2 := literal.Text()
		if !ok1 || !ok2 {
			return false, fmt.Errorf("sql: %s requires Text operands", op)
		}
		switch op {
		case opContains:
			return strings.Contains(fieldText, literalText), nil
		case opStartsWith:
			return strings.HasPrefix(fieldText, literalText), nil
		case opEndsWith:
			return strings.HasSuffix(fieldText, literalText), nil
		}
	}
	return false, fmt.Errorf("sql: unhandled operator %s", op)
}
