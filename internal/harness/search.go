package harness

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/locator"
)

// Row is one table row offered to a search predicate.
type Row struct {
	Index   int
	Element driver.Element

	// bound limits each lookup and action on the row; zero means ctx alone.
	bound time.Duration
}

func (r Row) within(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.bound <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.bound)
}

// Cell returns the trimmed text of the n-th (1-based) cell of the row.
func (r Row) Cell(ctx context.Context, n int) (string, error) {
	ctx, cancel := r.within(ctx)
	defer cancel()
	cell, err := r.Element.Find(ctx, locator.Cell(n))
	if err != nil {
		return "", err
	}
	text, err := cell.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Click clicks the descendant of the row matched by a CSS-compatible loc.
func (r Row) Click(ctx context.Context, loc locator.Locator) error {
	ctx, cancel := r.within(ctx)
	defer cancel()
	el, err := r.Element.Find(ctx, loc)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

// Predicate decides whether a row is the one to act on. A row whose cells
// cannot be read does not match.
type Predicate func(ctx context.Context, r Row) bool

// ColumnContains matches rows whose n-th cell contains text.
func ColumnContains(n int, text string) Predicate {
	return func(ctx context.Context, r Row) bool {
		v, err := r.Cell(ctx, n)
		return err == nil && strings.Contains(v, text)
	}
}

// ColumnEquals matches rows whose n-th cell equals text after trimming.
func ColumnEquals(n int, text string) Predicate {
	return func(ctx context.Context, r Row) bool {
		v, err := r.Cell(ctx, n)
		return err == nil && v == text
	}
}

// AllOf matches rows that satisfy every predicate.
func AllOf(preds ...Predicate) Predicate {
	return func(ctx context.Context, r Row) bool {
		for _, p := range preds {
			if !p(ctx, r) {
				return false
			}
		}
		return true
	}
}

// RowsOf yields the elements as rows in document order.
func RowsOf(els []driver.Element) iter.Seq[Row] {
	return boundedRows(els, 0)
}

func boundedRows(els []driver.Element, bound time.Duration) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for i, el := range els {
			if !yield(Row{Index: i, Element: el, bound: bound}) {
				return
			}
		}
	}
}

// FirstMatch walks rows once and returns the first one pred accepts. It fails
// with NO_MATCH when the sequence ends without a match, including when it is empty.
func FirstMatch(ctx context.Context, rows iter.Seq[Row], pred Predicate) (Row, error) {
	seen := 0
	for r := range rows {
		if err := ctx.Err(); err != nil {
			return Row{}, newError(KindInteraction, "search", "search interrupted", err)
		}
		seen++
		if pred(ctx, r) {
			return r, nil
		}
	}
	return Row{}, newError(KindNoMatch, "search", fmt.Sprintf("no row matched among %d", seen), nil)
}

// RowSearch describes a search-and-act over a table.
type RowSearch struct {
	// Rows selects the candidate rows, e.g. the tbody rows of a table.
	Rows  locator.Locator
	Match Predicate
	// Act runs exactly once, on the first matching row.
	Act func(ctx context.Context, s *Session, r Row) error
}

// SearchAndAct reads the current rows, picks the first match and acts on it.
func SearchAndAct(ctx context.Context, s *Session, q RowSearch) (Row, error) {
	if q.Match == nil {
		return Row{}, newError(KindInteraction, "search", "no predicate", nil)
	}
	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	els, err := s.driver.FindAll(lctx, q.Rows)
	cancel()
	if err != nil {
		return Row{}, interaction("list rows", q.Rows, err)
	}
	row, err := FirstMatch(ctx, boundedRows(els, s.timeout), q.Match)
	if err != nil {
		var he *Error
		if errors.As(err, &he) && he.Kind == KindNoMatch {
			he.Message = fmt.Sprintf("%s in %s", he.Message, q.Rows)
		}
		return Row{}, err
	}
	s.logger.Info("matching row found", "index", row.Index, "rows", len(els))
	if q.Act == nil {
		return row, nil
	}
	if err := q.Act(ctx, s, row); err != nil {
		return row, interaction(fmt.Sprintf("act on row %d of", row.Index), q.Rows, err)
	}
	return row, nil
}
