package df

// StackIQ stacks the raw IQ rows found in measurements into a matrix with
// one row per antenna element. Rows beyond elements are dropped and all
// rows are truncated to the shortest row so the matrix stays rectangular.
// Returns nil when fewer than elements rows are available or when rows are
// too short to estimate a covariance from.
func StackIQ(measurements []Measurement, elements int) [][]complex128 {
	var rows [][]complex128
	for _, m := range measurements {
		if len(m.IQ) == 0 {
			continue
		}
		rows = append(rows, m.IQ.Complex())
		if len(rows) == elements {
			break
		}
	}
	if len(rows) < elements {
		return nil
	}

	cols := len(rows[0])
	for _, r := range rows[1:] {
		if len(r) < cols {
			cols = len(r)
		}
	}
	if cols < 2 {
		return nil
	}
	for i := range rows {
		rows[i] = rows[i][:cols]
	}
	return rows
}
