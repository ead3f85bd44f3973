package reference

// ReferenceRow is one row of a reference list (entity, category, sub-category, ...).
// A nil ParentKey marks a global row that is not scoped to any parent.
type ReferenceRow struct {
	ID        string
	ParentKey *string
	Code      string
	Label     string
	SortOrder int
}

// IsGlobal returns true if the row has no owning parent scope
func (r ReferenceRow) IsGlobal() bool {
	return r.ParentKey == nil
}

// BelongsTo returns true if the row is scoped to the given parent
func (r ReferenceRow) BelongsTo(parent string) bool {
	return r.ParentKey != nil && *r.ParentKey == parent
}

// ParentOf is a small helper for building rows with a parent key
func ParentOf(key string) *string {
	return &key
}

// Catalog is an immutable snapshot of the rows returned by one catalog fetch.
// Rows keep the order they were fetched in (display label order).
type Catalog struct {
	kind  CatalogKind
	rows  []ReferenceRow
	index map[string]int
}

// NewCatalog creates a snapshot from fetched rows. The input slice is copied.
func NewCatalog(kind CatalogKind, rows []ReferenceRow) *Catalog {
	c := &Catalog{
		kind:  kind,
		rows:  make([]ReferenceRow, len(rows)),
		index: make(map[string]int, len(rows)),
	}
	for i, row := range rows {
		if row.ParentKey != nil {
			parent := *row.ParentKey
			row.ParentKey = &parent
		}
		c.rows[i] = row
		if _, dup := c.index[row.ID]; !dup {
			c.index[row.ID] = i
		}
	}
	return c
}

// EmptyCatalog returns a catalog that has not received any rows yet
func EmptyCatalog(kind CatalogKind) *Catalog {
	return NewCatalog(kind, nil)
}

// Kind returns the catalog kind
func (c *Catalog) Kind() CatalogKind {
	return c.kind
}

// Len returns the number of rows
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rows)
}

// Rows returns a copy of all rows in fetch order
func (c *Catalog) Rows() []ReferenceRow {
	if c == nil {
		return nil
	}
	out := make([]ReferenceRow, len(c.rows))
	copy(out, c.rows)
	return out
}

// Contains returns true if a row with the given id exists
func (c *Catalog) Contains(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[id]
	return ok
}

// Find returns the row with the given id
func (c *Catalog) Find(id string) (ReferenceRow, bool) {
	if c == nil {
		return ReferenceRow{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return ReferenceRow{}, false
	}
	return c.rows[i], true
}

// HasGlobalRows returns true if any row has no parent key
func (c *Catalog) HasGlobalRows() bool {
	if c == nil {
		return false
	}
	for _, row := range c.rows {
		if row.IsGlobal() {
			return true
		}
	}
	return false
}
