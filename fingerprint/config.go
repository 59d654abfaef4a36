package fingerprint

// Config carries every tunable constant the spectrogram, peak picker,
// and hasher depend on. It is a single immutable value built once at
// startup (config.Load); changing any field invalidates every hash
// already stored in a Landmark Index, since hashes are not portable
// across parameter sets (spec §4.1 rationale).
type Config struct {
	SampleRate int // Hz; input is resampled to this rate if it arrives at another
	WindowSize int // N_FFT, samples, must be a power of 2
	HopSize    int // samples between successive STFT frames

	Neighborhood int // half-width of the max-filter neighborhood used for peak picking
	Percentile   int // energy percentile used as the peak threshold

	FanValue int // number of future peaks paired with each anchor
	MinDT    int // minimum anchor-target delta, in frames
	MaxDT    int // maximum anchor-target delta, in frames
}

// DefaultConfig returns the parameter set fixed by spec §4.1-§4.3.
// SR=22050, N_FFT=2048, HOP=512, 21x21-cell neighborhood (half-width
// 10), 98th percentile, fan-out 10, Δt in [1, 200] frames.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		WindowSize: 2048,
		HopSize:    512,

		Neighborhood: 10,
		Percentile:   98,

		FanValue: 10,
		MinDT:    1,
		MaxDT:    200,
	}
}
