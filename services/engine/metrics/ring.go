// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

// ring is a fixed-capacity append-only buffer holding the most recent
// observations of one series. Not safe for concurrent use on its own;
// the Collector serializes access.
type ring struct {
	values []float64
	next   int
	filled bool
}

func newRing(capacity int) *ring {
	return &ring{values: make([]float64, capacity)}
}

func (r *ring) add(v float64) {
	r.values[r.next] = v
	r.next++
	if r.next == len(r.values) {
		r.next = 0
		r.filled = true
	}
}

func (r *ring) len() int {
	if r.filled {
		return len(r.values)
	}
	return r.next
}

// mean returns the moving average over the window, or 0 when empty.
func (r *ring) mean() float64 {
	n := r.len()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += r.values[i]
	}
	return sum / float64(n)
}

// variance returns the population variance over the window.
func (r *ring) variance() float64 {
	n := r.len()
	if n == 0 {
		return 0
	}
	m := r.mean()
	var sum float64
	for i := 0; i < n; i++ {
		d := r.values[i] - m
		sum += d * d
	}
	return sum / float64(n)
}

// last returns the most recent observation, or 0 when empty.
func (r *ring) last() float64 {
	if r.len() == 0 {
		return 0
	}
	idx := r.next - 1
	if idx < 0 {
		idx = len(r.values) - 1
	}
	return r.values[idx]
}
