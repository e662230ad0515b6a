// Copyright 2025 Kadir Pekel
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

package agent

// ScoreConfidence grades retrieval-backed results: high needs at least
// three sources with a mean score of 0.7, medium at least two with a mean
// of 0.5. Everything else, including no sources, is low.
func ScoreConfidence(sources []Source) Confidence {
	scores := make([]float64, len(sources))
	for i, s := range sources {
		scores[i] = s.Score
	}
	return ConfidenceFromScores(scores)
}

// ConfidenceFromScores is ScoreConfidence over raw relevance scores.
func ConfidenceFromScores(scores []float64) Confidence {
	n := len(scores)
	if n == 0 {
		return ConfidenceLow
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(n)

	switch {
	case n >= 3 && mean >= 0.7:
		return ConfidenceHigh
	case n >= 2 && mean >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// rank orders confidence tiers for comparisons.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether c is the same tier as other or better.
func (c Confidence) AtLeast(other Confidence) bool {
	return c.rank() >= other.rank()
}
