package fingerprint

import (
	"math"
	"testing"
)

func sineWave(freqHz float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate))
	}
	return out
}

func TestFingerprintDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	samples := sineWave(440, cfg.SampleRate, cfg.SampleRate*3)

	a, err := Fingerprint(samples, cfg.SampleRate, cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := Fingerprint(samples, cfg.SampleRate, cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("landmark counts differ across runs: %d vs %d", len(a), len(b))
	}

	setA := map[Landmark]int{}
	for _, l := range a {
		setA[l]++
	}
	for _, l := range b {
		setA[l]--
	}
	for l, count := range setA {
		if count != 0 {
			t.Fatalf("landmark multiset differs across runs at %+v (delta %d)", l, count)
		}
	}
}

func TestSilenceProducesNoLandmarks(t *testing.T) {
	cfg := DefaultConfig()
	samples := make([]float64, cfg.SampleRate*3)

	landmarks, err := Fingerprint(samples, cfg.SampleRate, cfg)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if len(landmarks) != 0 {
		t.Fatalf("expected zero landmarks from silence, got %d", len(landmarks))
	}
}

func TestHashContract(t *testing.T) {
	got := hashTriple(100, 200, 15)
	want := "37118623dbc1d6f1bd3e46ca7a2992e9d922bd82" // sha1("100|200|15")

	if got != want {
		t.Fatalf("hashTriple(100, 200, 15) = %q, want %q", got, want)
	}
}

func TestPeaksOrderedByTimeThenFreq(t *testing.T) {
	cfg := DefaultConfig()
	samples := sineWave(880, cfg.SampleRate, cfg.SampleRate*2)
	spectrogram, err := Spectrogram(samples, cfg.SampleRate, cfg)
	if err != nil {
		t.Fatalf("spectrogram: %v", err)
	}

	peaks := Peaks(spectrogram, cfg)
	for i := 1; i < len(peaks); i++ {
		prev, cur := peaks[i-1], peaks[i]
		if cur.Time < prev.Time || (cur.Time == prev.Time && cur.Freq < prev.Freq) {
			t.Fatalf("peaks not ordered: %+v before %+v", prev, cur)
		}
	}
}

func TestHashRespectsDeltaBounds(t *testing.T) {
	cfg := DefaultConfig()
	peaks := []Peak{
		{Freq: 10, Time: 0},
		{Freq: 20, Time: cfg.MaxDT + 50}, // outside MaxDT
	}
	landmarks := Hash(peaks, cfg)
	if len(landmarks) != 0 {
		t.Fatalf("expected no landmarks for out-of-range delta, got %d", len(landmarks))
	}
}
