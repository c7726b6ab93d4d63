package features

// Span is one (onset, offset) pair in seconds
type Span struct {
	Onset  float64
	Offset float64
}

// RegionsByFile groups annotation intervals per filename, keeping the
// table order within each file
func RegionsByFile(intervals []Interval) map[string][]Span {
	regions := make(map[string][]Span)
	for _, iv := range intervals {
		regions[iv.Filename] = append(regions[iv.Filename], Span{Onset: iv.Onset, Offset: iv.Offset})
	}
	return regions
}
