package harness

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/driver/drivertest"
	"github.com/govqa/portalharness/internal/locator"
)

func emptyRows(func(Row) bool) {}

func TestFirstMatchEmptyIsNoMatch(t *testing.T) {
	var seq iter.Seq[Row] = emptyRows
	always := func(context.Context, Row) bool { return true }

	_, err := FirstMatch(context.Background(), seq, always)
	if KindOf(err) != KindNoMatch {
		t.Fatalf("FirstMatch(empty) = %v; want NO_MATCH", err)
	}
	_, err = FirstMatch(context.Background(), RowsOf(nil), always)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("FirstMatch(nil rows) = %v; want NO_MATCH", err)
	}
}

func TestSearchAndActPicksFirstMatchingRow(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.acquire(t)

	rows := locator.ByXPath("//table[@id='DataTables_Table_0']/tbody/tr")
	f.driver.Add(rows,
		drivertest.Row("Other", "Moderated"),
		drivertest.Row("Automation text", "Moderated"),
		drivertest.Row("Automation text", "Pending"),
	)

	acted := 0
	var actedOn int
	row, err := SearchAndAct(context.Background(), s, RowSearch{
		Rows:  rows,
		Match: AllOf(ColumnContains(1, "Automation text"), ColumnEquals(2, "Moderated")),
		Act: func(ctx context.Context, s *Session, r Row) error {
			acted++
			actedOn = r.Index
			return nil
		},
	})
	if err != nil {
		t.Fatalf("SearchAndAct() = %v", err)
	}
	if row.Index != 1 || actedOn != 1 {
		t.Fatalf("row = %d, acted on %d; want 1", row.Index, actedOn)
	}
	if acted != 1 {
		t.Fatalf("act calls = %d; want 1", acted)
	}
}

func TestSearchAndActNoMatchDoesNotAct(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.acquire(t)

	rows := locator.ByXPath("//tr")
	f.driver.Add(rows, drivertest.Row("Other", "Pending"))

	_, err := SearchAndAct(context.Background(), s, RowSearch{
		Rows:  rows,
		Match: ColumnEquals(2, "Moderated"),
		Act: func(context.Context, *Session, Row) error {
			t.Fatal("Act called without a match")
			return nil
		},
	})
	if KindOf(err) != KindNoMatch {
		t.Fatalf("SearchAndAct() = %v; want NO_MATCH", err)
	}

	// An empty table is a NO_MATCH too, never another kind.
	_, err = SearchAndAct(context.Background(), s, RowSearch{Rows: locator.ByXPath("//tbody/tr"), Match: ColumnEquals(1, "x")})
	if KindOf(err) != KindNoMatch {
		t.Fatalf("SearchAndAct(empty) = %v; want NO_MATCH", err)
	}
}

func TestSearchAndActWrapsActErrors(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.acquire(t)

	rows := locator.ByXPath("//tr")
	f.driver.Add(rows, drivertest.Row("Automation text"))
	_, err := SearchAndAct(context.Background(), s, RowSearch{
		Rows:  rows,
		Match: ColumnContains(1, "Automation"),
		Act: func(ctx context.Context, s *Session, r Row) error {
			return r.Click(ctx, locator.ByCSS(":scope > td:nth-of-type(8) > a"))
		},
	})
	if KindOf(err) != KindInteraction || !errors.Is(err, driver.ErrNoElement) {
		t.Fatalf("SearchAndAct() = %v; want INTERACTION wrapping ErrNoElement", err)
	}
}

func TestRowCellRejectsXPath(t *testing.T) {
	row := Row{Element: drivertest.Row("a")}
	if _, err := row.Element.Find(context.Background(), locator.ByXPath(".//td[2]")); !errors.Is(err, driver.ErrUnsupportedLocator) {
		t.Fatalf("Find(xpath) = %v; want ErrUnsupportedLocator", err)
	}
	if got, err := row.Cell(context.Background(), 1); err != nil || got != "a" {
		t.Fatalf("Cell(1) = %q, %v", got, err)
	}
}

func TestRowClickOnHiddenLinkIsBounded(t *testing.T) {
	f := newFixture(t, 100*time.Millisecond)
	s := f.acquire(t)

	edit := locator.ByCSS(":scope > td:nth-of-type(8) > a")
	row := drivertest.Row("Automation text")
	link := drivertest.NewElement("edit")
	link.Hidden = true
	row.Children[edit.String()] = link

	rows := locator.ByXPath("//tr")
	f.driver.Add(rows, row)

	start := time.Now()
	_, err := SearchAndAct(context.Background(), s, RowSearch{
		Rows:  rows,
		Match: ColumnContains(1, "Automation"),
		Act: func(ctx context.Context, s *Session, r Row) error {
			return r.Click(ctx, edit)
		},
	})
	if KindOf(err) != KindInteraction || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("SearchAndAct() = %v; want INTERACTION after the deadline", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("SearchAndAct() took %s; want about the session timeout", elapsed)
	}
	if link.Clicks() != 0 {
		t.Fatalf("clicks = %d; want 0", link.Clicks())
	}
}
