package benchmark

import "strconv"

// sizeLabel returns a short label for a queue or batch size.
func sizeLabel(size int) string {
	switch {
	case size >= 10000:
		return "10k"
	case size >= 1000:
		return "1k"
	case size >= 100:
		return "100"
	case size == 0:
		return "unbounded"
	default:
		return strconv.Itoa(size)
	}
}

// workerLabel returns a label for a worker count.
func workerLabel(workers int) string {
	return strconv.Itoa(workers) + "workers"
}

// scaleLabel returns a label for a worker/queue combination.
func scaleLabel(workers, queue int) string {
	return workerLabel(workers) + "_q" + sizeLabel(queue)
}
