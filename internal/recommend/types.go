// Package recommend ranks the tradable universe into candidate batches.
package recommend

// Range identifies the slice of the ranked universe a batch was drawn from.
// Absence tracking only compares batches drawn from the same range, so a
// narrowed scan cannot evict instruments it never looked at.
type Range struct {
	Start int
	End   int
}

// Candidate is one ranked instrument.
type Candidate struct {
	Market     string  `json:"market"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Price      float64 `json:"price"`
}
