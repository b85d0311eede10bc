package suggest

// Range is a half-open row window [Start, End). Bounds may fall outside the
// buffer, use Clip before reading rows.
type Range struct {
	Start int
	End   int
}

// Clip returns the window limited to the valid rows of a buffer with
// totalRows rows.
func (r Range) Clip(totalRows int) Range {
	start, end := r.Start, r.End
	if start < 0 {
		start = 0
	}
	if end > totalRows {
		end = totalRows
	}
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// Contains reports whether row lies in the window.
func (r Range) Contains(row int) bool {
	return row >= r.Start && row < r.End
}

// Len is the number of rows covered by the window.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// ClampedRange bounds how many rows around cursorRow are scanned when a
// buffer index is rebuilt. maxRangeLines is the reach on each side of the
// cursor. When one side is cut short by the buffer edge, the unused reach
// is added to the other side, so a large buffer is always scanned over
// 2*maxRangeLines rows no matter where the cursor sits.
//
// A buffer with no more than maxRangeLines rows is covered entirely: Start
// is below 0 and End past totalRows. The returned bounds are not clipped;
// a non-positive maxRangeLines yields an unbounded window.
func ClampedRange(maxRangeLines, cursorRow, totalRows int) Range {
	if maxRangeLines <= 0 {
		return Range{Start: -1, End: totalRows + 1}
	}
	if totalRows <= maxRangeLines {
		return Range{
			Start: min(cursorRow-maxRangeLines, -1),
			End:   max(cursorRow+maxRangeLines, totalRows+1),
		}
	}

	above := min(maxRangeLines, max(cursorRow, 0))
	below := min(maxRangeLines, max(totalRows-cursorRow, 0))

	return Range{
		Start: cursorRow - above - (maxRangeLines - below),
		End:   cursorRow + below + (maxRangeLines - above),
	}
}
