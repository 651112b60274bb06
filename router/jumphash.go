package router

// jumpHash implements Google's Jump Consistent Hash function
// (https://arxiv.org/abs/1406.2294): it maps key deterministically onto one
// of numBuckets buckets, and only remaps ~1/n of keys when numBuckets
// changes from n to n+1.
func jumpHash(key uint64, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}

	var b int64 = -1
	var j int64

	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(b)
}
