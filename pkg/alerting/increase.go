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

package alerting

import (
	"time"

	"github.com/prometheus/common/model"
)

// Increase returns the counter increase of samples within [start, end].
//
// Consecutive pairs contribute cur-prev when the value grew, and cur when it
// dropped (a counter reset restarts from zero). Fewer than two samples in the
// window yield 0. Samples must be in ascending time order.
func Increase(samples []model.SamplePair, start, end time.Time) float64 {
	from := model.TimeFromUnixNano(start.UnixNano())
	to := model.TimeFromUnixNano(end.UnixNano())

	var (
		total float64
		prev  model.SampleValue
		count int
	)
	for _, sample := range samples {
		if sample.Timestamp.Before(from) || sample.Timestamp.After(to) {
			continue
		}
		if count > 0 {
			if sample.Value >= prev {
				total += float64(sample.Value - prev)
			} else {
				total += float64(sample.Value)
			}
		}
		prev = sample.Value
		count++
	}
	if count < 2 {
		return 0
	}
	return total
}
