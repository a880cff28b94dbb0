package retrieval

// historyWindow is how many trailing messages participate in retrieval.
const historyWindow = 4

// Weight returns the retrieval weight for the k-th most recent message.
// k = 0 is the current message; earlier messages decay linearly and are
// clamped at zero. Deterministic in position, independent of content.
func Weight(k int) float64 {
	if k <= 0 {
		return 1.0
	}
	w := 0.6 - float64(k-1)*0.2
	if w < 0 {
		return 0
	}
	return w
}
