package fingerprint

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// ErrEmptyAudio is returned by Spectrogram when given a zero-length
// sample stream. It is a plain sentinel, not wrapped in an
// AudioLoadError; wav.Decode already reports a file with no samples as
// an AudioLoadError before its samples reach Spectrogram.
var ErrEmptyAudio = errors.New("fingerprint: empty sample stream")

// Spectrogram converts a mono PCM sample stream into a magnitude
// time-frequency matrix of T frames, each holding F = WindowSize/2+1
// frequency bins (indexed [t][f]), using a
// centered Hann window and the STFT parameters in cfg (spec §4.1). If
// sampleRate differs from cfg.SampleRate the signal is first resampled;
// the resampling itself is the transcoder's job at ingestion time, but
// the builder tolerates any input rate per the contract.
func Spectrogram(samples []float64, sampleRate int, cfg Config) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	if sampleRate != cfg.SampleRate {
		resampled, err := Resample(samples, sampleRate, cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: resample: %w", err)
		}
		samples = resampled
	}

	window := hannWindow(cfg.WindowSize)
	freqBins := cfg.WindowSize/2 + 1

	numFrames := 1
	if len(samples) > cfg.WindowSize {
		remainder := len(samples) - cfg.WindowSize
		numFrames = (remainder+cfg.HopSize-1)/cfg.HopSize + 1
	}

	spectrogram := make([][]float64, 0, numFrames)
	frame := make([]float64, cfg.WindowSize)

	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopSize

		for i := range frame {
			frame[i] = 0
		}
		end := start + cfg.WindowSize
		if end > len(samples) {
			end = len(samples)
		}
		if start < len(samples) {
			copy(frame, samples[start:end])
		}

		for i := range window {
			frame[i] *= window[i]
		}

		spectrum := fft.FFTReal(frame)

		magnitude := make([]float64, freqBins)
		for f := 0; f < freqBins && f < len(spectrum); f++ {
			magnitude[f] = cmplx.Abs(spectrum[f])
		}

		spectrogram = append(spectrogram, magnitude)
	}

	return spectrogram, nil
}

// hannWindow returns a centered Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Resample changes the sample rate of input from originalRate to
// targetRate by block-averaging (decimation) when downsampling, or
// linear interpolation when upsampling. Kept in the teacher's
// LowPassFilter+Downsample idiom, generalized to both directions since
// the spectrogram builder contractually "must tolerate any SR".
func Resample(input []float64, originalRate, targetRate int) ([]float64, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, errors.New("sample rates must be positive")
	}
	if originalRate == targetRate {
		out := make([]float64, len(input))
		copy(out, input)
		return out, nil
	}

	if targetRate < originalRate {
		filtered := lowPassFilter(float64(targetRate)/2, float64(originalRate), input)
		return decimate(filtered, originalRate, targetRate), nil
	}

	return interpolate(input, originalRate, targetRate), nil
}

// lowPassFilter is a first-order RC low-pass, used ahead of decimation
// to avoid aliasing energy above the new Nyquist frequency.
func lowPassFilter(cutoffHz, sampleRate float64, input []float64) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / sampleRate
	alpha := dt / (rc + dt)

	out := make([]float64, len(input))
	var prev float64
	for i, x := range input {
		if i == 0 {
			out[i] = x * alpha
		} else {
			out[i] = alpha*x + (1-alpha)*prev
		}
		prev = out[i]
	}
	return out
}

func decimate(input []float64, originalRate, targetRate int) []float64 {
	ratio := float64(originalRate) / float64(targetRate)
	out := make([]float64, 0, int(float64(len(input))/ratio)+1)
	for k := 0; ; k++ {
		i := int(float64(k) * ratio)
		if i >= len(input) {
			break
		}
		end := int(float64(k+1) * ratio)
		if end <= i {
			end = i + 1
		}
		if end > len(input) {
			end = len(input)
		}
		var sum float64
		for j := i; j < end; j++ {
			sum += input[j]
		}
		out = append(out, sum/float64(end-i))
	}
	return out
}

func interpolate(input []float64, originalRate, targetRate int) []float64 {
	if len(input) == 0 {
		return nil
	}
	ratio := float64(targetRate) / float64(originalRate)
	outLen := int(float64(len(input)) * ratio)
	out := make([]float64, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		lo := int(srcPos)
		hi := lo + 1
		frac := srcPos - float64(lo)
		if hi >= len(input) {
			out[i] = input[len(input)-1]
			continue
		}
		out[i] = input[lo]*(1-frac) + input[hi]*frac
	}
	return out
}
