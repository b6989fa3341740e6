package analyzer

import "math"

// Producer-friendly tempo range. Raw rhythm extraction often lands on a
// half- or double-time reading of the felt tempo.
const (
	MinProducerBPM = 70
	MaxProducerBPM = 180

	bpmRoundStep = 5
)

// RoundTo rounds x to the nearest multiple of step.
func RoundTo(x float64, step int) int {
	if step <= 0 {
		step = 1
	}
	return int(math.Floor(x/float64(step)+0.5)) * step
}

// NormalizeBPM halves or doubles x until it lands inside [low, high].
func NormalizeBPM(x, low, high float64) float64 {
	if x <= 0 || low <= 0 || high < low {
		return x
	}
	for x > high {
		x /= 2
	}
	for x < low {
		x *= 2
	}
	return x
}

// FinalBPM is the display tempo: rounded to the nearest 5 BPM, then
// normalized into the producer range.
func FinalBPM(bpmExact float64) int {
	rounded := RoundTo(bpmExact, bpmRoundStep)
	return int(NormalizeBPM(float64(rounded), MinProducerBPM, MaxProducerBPM))
}
