// Package locator describes how UI elements are found on a page.
package locator

import (
	"fmt"
	"strings"
)

// Strategy selects the query language of a Locator.
type Strategy int

const (
	XPath Strategy = iota
	CSS
	ID
	Name
)

func (s Strategy) String() string {
	switch s {
	case XPath:
		return "xpath"
	case CSS:
		return "css"
	case ID:
		return "id"
	case Name:
		return "name"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Condition is the state a wait blocks for.
type Condition int

const (
	Present Condition = iota
	Visible
	Clickable
	Absent
)

func (c Condition) String() string {
	switch c {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	case Absent:
		return "absent"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// Locator is an immutable strategy + selector pair.
type Locator struct {
	Strategy Strategy
	Selector string
}

func (l Locator) String() string {
	return l.Strategy.String() + "=" + l.Selector
}

// IsZero reports whether the locator has no selector.
func (l Locator) IsZero() bool {
	return strings.TrimSpace(l.Selector) == ""
}

// Query returns the selector as a CSS query where the strategy allows it.
func (l Locator) Query() (string, bool) {
	switch l.Strategy {
	case CSS:
		return l.Selector, true
	case ID:
		return "#" + cssIdent(l.Selector), true
	case Name:
		return `[name="` + cssString(l.Selector) + `"]`, true
	default:
		return "", false
	}
}

func ByXPath(expr string) Locator { return Locator{Strategy: XPath, Selector: expr} }
func ByCSS(query string) Locator  { return Locator{Strategy: CSS, Selector: query} }
func ByID(id string) Locator      { return Locator{Strategy: ID, Selector: id} }
func ByName(name string) Locator  { return Locator{Strategy: Name, Selector: name} }

// ByText matches a tag whose whitespace-normalized text equals text.
// An empty tag matches any element.
func ByText(tag, text string) Locator {
	return ByXPath(fmt.Sprintf("//%s[normalize-space()=%s]", anyTag(tag), Literal(text)))
}

// ByContainsText matches a tag whose own text nodes contain text.
func ByContainsText(tag, text string) Locator {
	return ByXPath(fmt.Sprintf("//%s[contains(text(),%s)]", anyTag(tag), Literal(text)))
}

// ByAttr matches a tag whose attribute equals value exactly.
func ByAttr(tag, attr, value string) Locator {
	return ByXPath(fmt.Sprintf("//%s[@%s=%s]", anyTag(tag), attr, Literal(value)))
}

// ByContainsAttr matches a tag whose attribute contains value.
func ByContainsAttr(tag, attr, value string) Locator {
	return ByXPath(fmt.Sprintf("//%s[contains(@%s,%s)]", anyTag(tag), attr, Literal(value)))
}

// ByClass matches the exact class attribute, as rendered by the server.
func ByClass(tag, class string) Locator {
	return ByAttr(tag, "class", class)
}

// ByContainsClass matches a tag carrying class among its class tokens.
func ByContainsClass(tag, class string) Locator {
	return ByXPath(fmt.Sprintf("//%s[contains(concat(' ',normalize-space(@class),' '),%s)]",
		anyTag(tag), Literal(" "+class+" ")))
}

// Nth selects the n-th (1-based) match of an XPath locator.
func Nth(l Locator, n int) Locator {
	if l.Strategy != XPath {
		return l
	}
	return ByXPath(fmt.Sprintf("(%s)[%d]", l.Selector, n))
}

// Child appends an XPath step to an XPath locator, e.g. Child(row, "//i[@class='x']").
func Child(l Locator, step string) Locator {
	if l.Strategy != XPath {
		return l
	}
	return ByXPath(l.Selector + step)
}

// Parent selects the parent element of an XPath locator.
func Parent(l Locator) Locator {
	return Child(l, "/..")
}

// Cell selects the n-th (1-based) cell of a table row, relative to the row.
func Cell(n int) Locator {
	return ByCSS(fmt.Sprintf(":scope > td:nth-of-type(%d)", n))
}

// Literal quotes s as an XPath 1.0 string literal.
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}

func anyTag(tag string) string {
	if tag == "" {
		return "*"
	}
	return tag
}

func cssString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func cssIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-', r > 0x7f:
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, `\%x `, r)
		}
	}
	return b.String()
}
