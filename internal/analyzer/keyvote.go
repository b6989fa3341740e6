package analyzer

import (
	"fmt"
	"strings"
)

// KeyVote is one key-profile's estimate for the track.
type KeyVote struct {
	Profile    string  `json:"profile"`
	Tonic      string  `json:"tonic"`
	Scale      string  `json:"scale"`
	Confidence float64 `json:"confidence"`
}

// DecideKey runs the ensemble vote over per-profile key estimates:
// majority tonic (summed-confidence tie-break), then major/minor decided
// by summed confidence among votes for the winning tonic.
func DecideKey(votes []KeyVote) (*KeyEstimate, error) {
	if len(votes) == 0 {
		return nil, fmt.Errorf("no key votes")
	}

	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.Tonic]++
	}
	top := 0
	for _, n := range counts {
		if n > top {
			top = n
		}
	}
	var tied []string
	for tonic, n := range counts {
		if n == top {
			tied = append(tied, tonic)
		}
	}

	tonic := tied[0]
	if len(tied) > 1 {
		best := -1.0
		for _, cand := range tied {
			sum := 0.0
			for _, v := range votes {
				if v.Tonic == cand {
					sum += v.Confidence
				}
			}
			if sum > best {
				best = sum
				tonic = cand
			}
		}
	}

	var minorScore, majorScore float64
	for _, v := range votes {
		if v.Tonic != tonic {
			continue
		}
		switch strings.ToLower(v.Scale) {
		case "minor":
			minorScore += v.Confidence
		default:
			majorScore += v.Confidence
		}
	}

	scale := "major"
	if minorScore >= majorScore {
		scale = "minor"
	}

	conf := 0.0
	if total := minorScore + majorScore; total > 0 {
		conf = max(minorScore, majorScore) / total
	}

	return &KeyEstimate{
		Key:            fmt.Sprintf("%s %s", tonic, scale),
		Tonic:          tonic,
		Scale:          scale,
		ModeConfidence: conf,
		Votes:          votes,
	}, nil
}
