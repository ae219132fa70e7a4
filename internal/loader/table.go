package loader

// Table is a header-indexed set of result rows. Every row has exactly
// len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// NewTable builds a table, padding short rows and truncating long ones.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(columns))
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		// First occurrence wins for duplicated headers.
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	if t == nil {
		return -1
	}
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Has reports whether col is a column.
func (t *Table) Has(col string) bool {
	return t.Index(col) >= 0
}

// Get returns the cell at row for col ("" when the column is absent).
func (t *Table) Get(row int, col string) string {
	i := t.Index(col)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// Record returns row as a column → value map.
func (t *Table) Record(row int) map[string]string {
	if row < 0 || row >= t.Len() {
		return nil
	}
	rec := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := rec[c]; dup {
			continue
		}
		rec[c] = t.Rows[row][i]
	}
	return rec
}

func (t *Table) rename(from, to string) {
	i := t.Index(from)
	if i < 0 {
		return
	}
	t.Columns[i] = to
	t.reindex()
}

func (t *Table) addColumn(name, value string) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], value)
	}
	t.reindex()
}

func (t *Table) dropColumn(col string) {
	i := t.Index(col)
	if i < 0 {
		return
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	for r, row := range t.Rows {
		t.Rows[r] = append(row[:i], row[i+1:]...)
	}
	t.reindex()
}

// mergeInto fills blank cells of to from from, then drops from.
func (t *Table) mergeInto(from, to string) {
	fi, ti := t.Index(from), t.Index(to)
	if fi < 0 || ti < 0 {
		return
	}
	for _, row := range t.Rows {
		if row[ti] == "" {
			row[ti] = row[fi]
		}
	}
	t.dropColumn(from)
}
