package rowcompress

// OrderByLess builds a total-order comparator over reconstructed tuples
// (as produced by TupleIterator.Next, positionally aligned with columns)
// from the ORDER BY columns' CompareFunc, Asc and NullsFirst settings —
// ties fall through to the next ORDER BY column in column-list order.
// The batch queue heap uses this to merge segments under a global sort
// order a single compressed row does not itself carry.
func OrderByLess(columns []ColumnInfo) func(a, b []any) bool {
	return func(a, b []any) bool {
		for i, col := range columns {
			if col.Kind != OrderBy {
				continue
			}

			av, bv := a[i], b[i]
			switch {
			case av == nil && bv == nil:
				continue
			case av == nil:
				return col.NullsFirst
			case bv == nil:
				return !col.NullsFirst
			}

			c := col.Compare(av, bv)
			if !col.Asc {
				c = -c
			}

			switch {
			case c < 0:
				return true
			case c > 0:
				return false
			}
		}

		return false
	}
}
