// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

// history is a fixed-size circular buffer of pass summaries.
// When full, new summaries overwrite the oldest ones. Not thread-safe; the
// owning store serialises access.
type history struct {
	items []PassSummary
	head  int // index where the next summary is written
	count int
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistoryLimit
	}
	return &history{items: make([]PassSummary, size)}
}

func (h *history) add(summary PassSummary) {
	h.items[h.head] = summary
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// newest returns up to n summaries, newest first. n <= 0 returns all.
func (h *history) newest(n int) []PassSummary {
	if n <= 0 || n > h.count {
		n = h.count
	}

	out := make([]PassSummary, n)
	for i := 0; i < n; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out[i] = h.items[idx]
	}
	return out
}
