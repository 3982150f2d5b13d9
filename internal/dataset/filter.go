package dataset

// FilterValid returns the rows where every named column holds a non-missing,
// finite value. The input is not modified. An empty column list returns d
// itself; no matching rows yields an empty Dataset, not an error. Columns the
// dataset does not have count as missing everywhere.
func FilterValid(d *Dataset, columns []string) *Dataset {
	if len(columns) == 0 {
		return d
	}
	keep := make([]int, 0, d.Len())
	for i := 0; i < d.Len(); i++ {
		ok := true
		for _, c := range columns {
			if !d.Valid(c, i) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return d.Take(keep)
}
