// ABOUTME: Backend-neutral filter, ordering and aggregate model for log point queries.
// ABOUTME: Filters render to SQL for SQLite and evaluate in-process for Badger.
package storage

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/harperreed/bikey/internal/models"
)

type predicateOp int

const (
	opNotNull predicateOp = iota
	opGt
	opGte
	opLt
	opLte
	opRideIn
	opIDMultiple
)

// Predicate is a single condition on a log point.
type Predicate struct {
	op     predicateOp
	col    models.Column
	value  float64
	rides  []int64
	modulo int64
}

// NotNull matches points where col has a value.
func NotNull(col models.Column) Predicate { return Predicate{op: opNotNull, col: col} }

// Gt matches points where col > v.
func Gt(col models.Column, v float64) Predicate { return Predicate{op: opGt, col: col, value: v} }

// Gte matches points where col >= v.
func Gte(col models.Column, v float64) Predicate { return Predicate{op: opGte, col: col, value: v} }

// Lt matches points where col < v.
func Lt(col models.Column, v float64) Predicate { return Predicate{op: opLt, col: col, value: v} }

// Lte matches points where col <= v.
func Lte(col models.Column, v float64) Predicate { return Predicate{op: opLte, col: col, value: v} }

// RideIs matches points owned by any of the listed rides.
func RideIs(ids ...int64) Predicate { return Predicate{op: opRideIn, rides: ids} }

// IDMultipleOf matches points whose ID is divisible by n.
func IDMultipleOf(n int64) Predicate { return Predicate{op: opIDMultiple, modulo: n} }

// Filter is a conjunction of predicates. The zero value matches everything.
type Filter []Predicate

// Where builds a Filter from predicates.
func Where(ps ...Predicate) Filter { return Filter(ps) }

// And returns a new Filter with additional predicates.
func (f Filter) And(ps ...Predicate) Filter {
	out := make(Filter, 0, len(f)+len(ps))
	out = append(out, f...)
	return append(out, ps...)
}

// Between returns predicates for lo <= col <= hi.
func Between(col models.Column, lo, hi float64) []Predicate {
	return []Predicate{Gte(col, lo), Lte(col, hi)}
}

// Validate checks that every predicate is well formed.
func (f Filter) Validate() error {
	for _, p := range f {
		switch p.op {
		case opRideIn:
			if len(p.rides) == 0 {
				return fmt.Errorf("%w: ride filter without ride ids", ErrInvalidArgument)
			}
		case opIDMultiple:
			if p.modulo <= 0 {
				return fmt.Errorf("%w: id modulo must be positive, got %d", ErrInvalidArgument, p.modulo)
			}
		default:
			if !models.IsValidColumn(string(p.col)) {
				return fmt.Errorf("%w: unknown column %q", ErrInvalidArgument, p.col)
			}
		}
	}
	return nil
}

// RideIDs returns the ride ids of the first ride predicate, if any.
func (f Filter) RideIDs() ([]int64, bool) {
	for _, p := range f {
		if p.op == opRideIn {
			return p.rides, true
		}
	}
	return nil, false
}

// Match reports whether the point satisfies every predicate.
func (f Filter) Match(lp *models.LogPoint) bool {
	for _, p := range f {
		if !p.match(lp) {
			return false
		}
	}
	return true
}

func (p Predicate) match(lp *models.LogPoint) bool {
	switch p.op {
	case opRideIn:
		return slices.Contains(p.rides, lp.RideID)
	case opIDMultiple:
		return lp.ID%p.modulo == 0
	}

	v, ok := lp.Value(p.col)
	if !ok {
		return false
	}
	switch p.op {
	case opNotNull:
		return true
	case opGt:
		return v > p.value
	case opGte:
		return v >= p.value
	case opLt:
		return v < p.value
	case opLte:
		return v <= p.value
	}
	return false
}

// whereSQL renders the filter as a WHERE clause (without the keyword).
func (f Filter) whereSQL() (string, []any) {
	if len(f) == 0 {
		return "1 = 1", nil
	}

	clauses := make([]string, 0, len(f))
	var args []any
	for _, p := range f {
		col := string(p.col)
		switch p.op {
		case opNotNull:
			clauses = append(clauses, col+" IS NOT NULL")
		case opGt:
			clauses = append(clauses, col+" > ?")
			args = append(args, p.value)
		case opGte:
			clauses = append(clauses, col+" >= ?")
			args = append(args, p.value)
		case opLt:
			clauses = append(clauses, col+" < ?")
			args = append(args, p.value)
		case opLte:
			clauses = append(clauses, col+" <= ?")
			args = append(args, p.value)
		case opRideIn:
			clauses = append(clauses, "ride_id IN ("+placeholders(len(p.rides))+")")
			for _, id := range p.rides {
				args = append(args, id)
			}
		case opIDMultiple:
			clauses = append(clauses, "id % ? = 0")
			args = append(args, p.modulo)
		}
	}
	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// LogQuery selects, orders and windows log points.
type LogQuery struct {
	Filter Filter
	// OrderBy defaults to the point ID. Ties always break by ascending ID.
	OrderBy models.Column
	Desc    bool
	Offset  int
	// Limit of zero or less means no limit.
	Limit int
}

func (q LogQuery) orderColumn() models.Column {
	if q.OrderBy == "" {
		return models.ColID
	}
	return q.OrderBy
}

// Validate checks the query filter and ordering.
func (q LogQuery) Validate() error {
	if err := q.Filter.Validate(); err != nil {
		return err
	}
	if !models.IsValidColumn(string(q.orderColumn())) {
		return fmt.Errorf("%w: unknown order column %q", ErrInvalidArgument, q.OrderBy)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidArgument, q.Offset)
	}
	return nil
}

// apply sorts and windows points in-process, mirroring SQL semantics where
// absent values sort first ascending and last descending.
func (q LogQuery) apply(points []*models.LogPoint) []*models.LogPoint {
	col := q.orderColumn()
	slices.SortStableFunc(points, func(a, b *models.LogPoint) int {
		av, aok := a.Value(col)
		bv, bok := b.Value(col)
		c := 0
		switch {
		case aok && bok:
			c = cmp.Compare(av, bv)
		case aok:
			c = 1
		case bok:
			c = -1
		}
		if q.Desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})

	if q.Offset >= len(points) {
		return nil
	}
	points = points[q.Offset:]
	if q.Limit > 0 && q.Limit < len(points) {
		points = points[:q.Limit]
	}
	return points
}

// AggOp is an aggregate function over a column.
type AggOp string

const (
	AggSum   AggOp = "SUM"
	AggAvg   AggOp = "AVG"
	AggMin   AggOp = "MIN"
	AggMax   AggOp = "MAX"
	AggCount AggOp = "COUNT"
)

func (op AggOp) valid() bool {
	switch op {
	case AggSum, AggAvg, AggMin, AggMax, AggCount:
		return true
	}
	return false
}

// aggregate computes op over the present values of col, in-process.
func aggregate(points []*models.LogPoint, op AggOp, col models.Column) *float64 {
	var (
		n      int
		sum    float64
		lo, hi float64
	)
	for _, p := range points {
		v, ok := p.Value(col)
		if !ok {
			continue
		}
		if n == 0 || v < lo {
			lo = v
		}
		if n == 0 || v > hi {
			hi = v
		}
		sum += v
		n++
	}

	var out float64
	switch op {
	case AggCount:
		out = float64(n)
		return &out
	case AggSum:
		out = sum
	case AggAvg:
		if n > 0 {
			out = sum / float64(n)
		}
	case AggMin:
		out = lo
	case AggMax:
		out = hi
	}
	if n == 0 {
		return nil
	}
	return &out
}
