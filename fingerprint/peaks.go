package fingerprint

import "sort"

// Peak identifies a spectrogram cell that is both a local maximum within
// its neighborhood (no neighbor is larger; ties count) and above the
// energy threshold (spec §4.2).
type Peak struct {
	Freq int // frequency bin index
	Time int // frame index
}

// Peaks extracts the sparse set of salient local maxima from a
// spectrogram. Deterministic for a given spectrogram and cfg. Returns
// peaks ordered ascending by Time, ties broken by ascending Freq.
func Peaks(spectrogram [][]float64, cfg Config) []Peak {
	t := len(spectrogram)
	if t == 0 {
		return nil
	}
	f := len(spectrogram[0])
	if f == 0 {
		return nil
	}

	threshold := percentile(spectrogram, cfg.Percentile)
	allZero := threshold == 0 && maxMagnitude(spectrogram) == 0

	half := cfg.Neighborhood
	var peaks []Peak

	for ti := 0; ti < t; ti++ {
		row := spectrogram[ti]
		for fi := 0; fi < f; fi++ {
			mag := row[fi]
			if mag < threshold {
				continue
			}

			if allZero {
				// every cell ties at zero: require strict dominance, which
				// no cell satisfies, so no peaks are ever emitted here.
				continue
			}

			if isLocalMax(spectrogram, ti, fi, half, t, f) {
				peaks = append(peaks, Peak{Freq: fi, Time: ti})
			}
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].Time != peaks[j].Time {
			return peaks[i].Time < peaks[j].Time
		}
		return peaks[i].Freq < peaks[j].Freq
	})

	return peaks
}

// isLocalMax reports whether spectrogram[t][f] equals the maximum
// magnitude within the axis-aligned (2*half+1)x(2*half+1) neighborhood
// centered on (f, t), with out-of-range neighbors clipped (no wrap).
func isLocalMax(spectrogram [][]float64, t, f, half, numFrames, numBins int) bool {
	center := spectrogram[t][f]

	tLo, tHi := t-half, t+half
	if tLo < 0 {
		tLo = 0
	}
	if tHi >= numFrames {
		tHi = numFrames - 1
	}
	fLo, fHi := f-half, f+half
	if fLo < 0 {
		fLo = 0
	}
	if fHi >= numBins {
		fHi = numBins - 1
	}

	for ti := tLo; ti <= tHi; ti++ {
		row := spectrogram[ti]
		for fi := fLo; fi <= fHi; fi++ {
			if row[fi] > center {
				return false
			}
		}
	}
	return true
}

// percentile returns the p-th percentile (0-100) of all magnitudes in
// the spectrogram, using linear interpolation between closest ranks.
func percentile(spectrogram [][]float64, p int) float64 {
	n := 0
	for _, row := range spectrogram {
		n += len(row)
	}
	if n == 0 {
		return 0
	}

	values := make([]float64, 0, n)
	for _, row := range spectrogram {
		values = append(values, row...)
	}
	sort.Float64s(values)

	if p <= 0 {
		return values[0]
	}
	if p >= 100 {
		return values[len(values)-1]
	}

	rank := float64(p) / 100 * float64(len(values)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(values) {
		return values[lo]
	}
	frac := rank - float64(lo)
	return values[lo]*(1-frac) + values[hi]*frac
}

func maxMagnitude(spectrogram [][]float64) float64 {
	var max float64
	for _, row := range spectrogram {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	return max
}
