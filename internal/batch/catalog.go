// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package batch

import (
	"errors"
	"sync"

	"github.com/ManuGH/wxbridge/internal/feed"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/rs/zerolog"
)

// ErrBusy is returned when the item list cannot change during a download run.
var ErrBusy = errors.New("download in progress, list cannot be cleared")

// Catalog defaults.
const (
	DefaultMaxItems = 100000
	DefaultPageSize = 50
)

// Catalog is the ordered, id-deduplicated list of candidate items together
// with the page cursor and selection set. Insertion order is preserved so
// appending never moves existing items across page boundaries.
type Catalog struct {
	mu       sync.RWMutex
	items    []feed.CandidateItem
	index    map[string]int
	selected map[string]struct{}
	page     int
	title    string

	maxItems int
	pageSize int
	warned   bool
	busy     func() bool

	logger zerolog.Logger
}

// NewCatalog creates an empty catalog. Non-positive limits take the defaults.
func NewCatalog(maxItems, pageSize int) *Catalog {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Catalog{
		index:    make(map[string]int),
		selected: make(map[string]struct{}),
		page:     1,
		maxItems: maxItems,
		pageSize: pageSize,
		logger:   xglog.WithComponent("catalog"),
	}
}

// GuardClear installs the predicate consulted by Clear.
func (c *Catalog) GuardClear(busy func() bool) {
	c.mu.Lock()
	c.busy = busy
	c.mu.Unlock()
}

// SetItems replaces the list, resetting selection and page.
func (c *Catalog) SetItems(title string, items []feed.CandidateItem) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = c.items[:0]
	c.index = make(map[string]int, len(items))
	c.selected = make(map[string]struct{})
	c.page = 1
	c.warned = false
	if title != "" {
		c.title = title
	}
	n := c.appendLocked(items)
	c.logger.Info().Str("event", "catalog.set").Int("count", n).Msg("item list replaced")
	return n
}

// Append merges items into the list. Ids already present and items without an
// id are skipped. Returns the number of items added.
func (c *Catalog) Append(items []feed.CandidateItem) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.appendLocked(items)
	c.logger.Debug().Str("event", "catalog.append").Int("added", n).Int(xglog.FieldTotal, len(c.items)).Msg("items appended")
	return n
}

func (c *Catalog) appendLocked(items []feed.CandidateItem) int {
	added := 0
	for _, it := range items {
		if len(c.items) >= c.maxItems {
			if !c.warned {
				c.warned = true
				c.logger.Warn().Str("event", "catalog.full").Int("max", c.maxItems).Msg("item list is full, further items are dropped")
			}
			break
		}
		if it.ID == "" {
			continue
		}
		if _, dup := c.index[it.ID]; dup {
			continue
		}
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
		added++
	}
	return added
}

// Clear empties the list unless a download is running.
func (c *Catalog) Clear() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy != nil && c.busy() {
		return 0, ErrBusy
	}
	n := len(c.items)
	c.items = nil
	c.index = make(map[string]int)
	c.selected = make(map[string]struct{})
	c.page = 1
	c.warned = false
	return n, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Title returns the list title set by the last SetItems.
func (c *Catalog) Title() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.title
}

// Items returns a copy of all items in order.
func (c *Catalog) Items() []feed.CandidateItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]feed.CandidateItem(nil), c.items...)
}

// Get looks up an item by id.
func (c *Catalog) Get(id string) (feed.CandidateItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return feed.CandidateItem{}, false
	}
	return c.items[i], true
}

// TotalPages is ceil(len/pageSize).
func (c *Catalog) TotalPages() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalPagesLocked()
}

func (c *Catalog) totalPagesLocked() int {
	return (len(c.items) + c.pageSize - 1) / c.pageSize
}

// PageSize returns the configured page size.
func (c *Catalog) PageSize() int {
	return c.pageSize
}

// CurrentPage returns the 1-based page cursor.
func (c *Catalog) CurrentPage() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page
}

// SetPage moves the cursor, clamped to [1, TotalPages].
func (c *Catalog) SetPage(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = max(1, min(n, c.totalPagesLocked()))
	return c.page
}

// Page returns the items on page n (1-based). Out-of-range pages are empty.
func (c *Catalog) Page(n int) []feed.CandidateItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]feed.CandidateItem(nil), c.pageLocked(n)...)
}

func (c *Catalog) pageLocked(n int) []feed.CandidateItem {
	if n < 1 {
		return nil
	}
	start := (n - 1) * c.pageSize
	if start >= len(c.items) {
		return nil
	}
	end := min(start+c.pageSize, len(c.items))
	return c.items[start:end]
}

// Toggle sets the selection state of one id. Ids not in the list are kept.
func (c *Catalog) Toggle(id string, selected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if selected {
		c.selected[id] = struct{}{}
	} else {
		delete(c.selected, id)
	}
}

// SelectPage selects or deselects every item on the current page.
func (c *Catalog) SelectPage(selected bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	page := c.pageLocked(c.page)
	for _, it := range page {
		if selected {
			c.selected[it.ID] = struct{}{}
		} else {
			delete(c.selected, it.ID)
		}
	}
	return len(page)
}

// Selected returns the selected items in list order.
func (c *Catalog) Selected() []feed.CandidateItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []feed.CandidateItem
	for _, it := range c.items {
		if _, ok := c.selected[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}

// IsSelected reports whether id is in the selection set.
func (c *Catalog) IsSelected(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.selected[id]
	return ok
}
