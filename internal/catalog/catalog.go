// Package catalog serves the embedded lists of candidate names.
package catalog

import (
	"cmp"
	"embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

//go:embed data/*.json
var dataFS embed.FS

// View selects a list.
type View string

const (
	Girls View = "girls"
	Boys  View = "boys"
)

// Order selects how a list is sorted.
type Order string

const (
	// Common lists the most given names first.
	Common Order = "common"
	// Rare lists the least given names first.
	Rare Order = "rare"
	// ABC and CBA sort alphabetically with Finnish collation (å, ä, ö after z).
	ABC Order = "abc"
	CBA Order = "cba"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Name is a candidate name and how many people carry it.
type Name struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Query selects one page of a list.
type Query struct {
	View     View
	Order    Order
	Page     int
	PageSize int
}

// Page is one page of a list.
type Page struct {
	View      View   `json:"view"`
	Order     Order  `json:"order"`
	Names     []Name `json:"names"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
	PageCount int    `json:"pageCount"`
	Total     int    `json:"total"`
}

// Catalog holds every list pre-sorted in every order. It is read-only and
// safe for concurrent use.
type Catalog struct {
	sorted  map[View]map[Order][]Name
	known   map[string]struct{}
	views   []View
	dflSize int
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDefaultPageSize sets the page size used when a query leaves it zero.
func WithDefaultPageSize(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.dflSize = min(n, MaxPageSize)
		}
	}
}

// New loads the embedded lists.
func New(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		sorted:  make(map[View]map[Order][]Name),
		known:   make(map[string]struct{}),
		views:   []View{Girls, Boys},
		dflSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	col := collate.New(language.Finnish)
	for _, v := range c.views {
		raw, err := dataFS.ReadFile("data/" + string(v) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", v, err)
		}
		var names []Name
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("decode %s: %w", v, err)
		}
		for i := range names {
			names[i].Name = norm.NFC.String(strings.TrimSpace(names[i].Name))
			c.known[fold(names[i].Name)] = struct{}{}
		}
		c.sorted[v] = sortAll(col, names)
	}
	return c, nil
}

func sortAll(col *collate.Collator, names []Name) map[Order][]Name {
	byName := func(a, b Name) int { return col.CompareString(a.Name, b.Name) }

	abc := slices.Clone(names)
	slices.SortStableFunc(abc, byName)
	cba := slices.Clone(abc)
	slices.Reverse(cba)

	common := slices.Clone(abc)
	slices.SortStableFunc(common, func(a, b Name) int { return cmp.Compare(b.Count, a.Count) })
	rare := slices.Clone(abc)
	slices.SortStableFunc(rare, func(a, b Name) int { return cmp.Compare(a.Count, b.Count) })

	return map[Order][]Name{Common: common, Rare: rare, ABC: abc, CBA: cba}
}

func fold(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// Views lists the available lists.
func (c *Catalog) Views() []View { return slices.Clone(c.views) }

// Names returns a whole list in the given order; an empty order means Common.
func (c *Catalog) Names(view View, order Order) ([]Name, error) {
	orders, ok := c.sorted[view]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	if order == "" {
		order = Common
	}
	list, ok := orders[order]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrder, order)
	}
	return slices.Clone(list), nil
}

// Page returns one page. A page past the end has no names but still reports
// the page count and total.
func (c *Catalog) Page(q Query) (Page, error) {
	if q.Page < 0 {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidPage, q.Page)
	}
	if q.Order == "" {
		q.Order = Common
	}
	size := q.PageSize
	if size <= 0 {
		size = c.dflSize
	}
	size = min(size, MaxPageSize)

	orders, ok := c.sorted[q.View]
	if !ok {
		return Page{}, fmt.Errorf("%w: %q", ErrUnknownView, q.View)
	}
	list, ok := orders[q.Order]
	if !ok {
		return Page{}, fmt.Errorf("%w: %q", ErrUnknownOrder, q.Order)
	}

	p := Page{
		View:      q.View,
		Order:     q.Order,
		Names:     []Name{},
		Page:      q.Page,
		PageSize:  size,
		PageCount: (len(list) + size - 1) / size,
		Total:     len(list),
	}
	start := q.Page * size
	if start < len(list) {
		p.Names = slices.Clone(list[start:min(start+size, len(list))])
	}
	return p, nil
}

// Contains reports whether name is on any list, ignoring case and Unicode
// normalization differences.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.known[fold(name)]
	return ok
}
