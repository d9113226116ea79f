package processors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"

	"gonum.org/v1/gonum/dsp/fourier"

	"videoJudge/core"
)

const (
	featureSampleRate = 16000
	featureFFTSize    = 2048
	featureHopSize    = 512
	featureMelBands   = 128
	featureMFCCCount  = 20
)

// AudioFeatures computes a feature matrix for an audio file. kind is "mfcc"
// or "mel"; rows are feature bands, columns are analysis frames. Used when
// persisting audio embeddings, not for rubric scoring.
func AudioFeatures(path string, kind string) ([][]float64, error) {
	if kind != "mfcc" && kind != "mel" {
		return nil, fmt.Errorf("%w: unsupported feature type %q", core.ErrInvalidInput, kind)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}

	samples, err := decodePCM(path)
	if err != nil {
		return nil, fmt.Errorf("decode audio %s: %v", path, err)
	}

	mel := melSpectrogram(samples)
	if kind == "mel" {
		return mel, nil
	}
	return mfcc(mel), nil
}

// decodePCM resamples the file to 16 kHz mono signed 16-bit PCM via ffmpeg
// and converts to float64 samples in [-1, 1].
func decodePCM(path string) ([]float64, error) {
	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1", "-ar", fmt.Sprint(featureSampleRate),
		"-")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	raw := out.Bytes()
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples, nil
}

// melSpectrogram computes a log-power mel spectrogram: Hann-windowed FFT
// frames projected onto a triangular mel filterbank.
func melSpectrogram(samples []float64) [][]float64 {
	fft := fourier.NewFFT(featureFFTSize)
	window := hannWindow(featureFFTSize)
	filters := melFilterbank()
	bins := featureFFTSize/2 + 1

	nFrames := 0
	if len(samples) >= featureFFTSize {
		nFrames = 1 + (len(samples)-featureFFTSize)/featureHopSize
	}

	mel := make([][]float64, featureMelBands)
	for b := range mel {
		mel[b] = make([]float64, nFrames)
	}

	frame := make([]float64, featureFFTSize)
	power := make([]float64, bins)
	for t := 0; t < nFrames; t++ {
		offset := t * featureHopSize
		for i := 0; i < featureFFTSize; i++ {
			frame[i] = samples[offset+i] * window[i]
		}
		coeffs := fft.Coefficients(nil, frame)
		for i := 0; i < bins; i++ {
			re := real(coeffs[i])
			im := imag(coeffs[i])
			power[i] = re*re + im*im
		}
		for b := 0; b < featureMelBands; b++ {
			var sum float64
			for i, w := range filters[b] {
				if w != 0 {
					sum += w * power[i]
				}
			}
			mel[b][t] = math.Log(math.Max(sum, 1e-10))
		}
	}
	return mel
}

// mfcc applies an orthonormal DCT-II over the mel bands of each frame and
// keeps the first featureMFCCCount coefficients.
func mfcc(mel [][]float64) [][]float64 {
	if len(mel) == 0 {
		return nil
	}
	nFrames := len(mel[0])
	out := make([][]float64, featureMFCCCount)
	for c := range out {
		out[c] = make([]float64, nFrames)
	}

	n := float64(featureMelBands)
	for t := 0; t < nFrames; t++ {
		for c := 0; c < featureMFCCCount; c++ {
			var sum float64
			for b := 0; b < featureMelBands; b++ {
				sum += mel[b][t] * math.Cos(math.Pi*float64(c)*(float64(b)+0.5)/n)
			}
			scale := math.Sqrt(2 / n)
			if c == 0 {
				scale = math.Sqrt(1 / n)
			}
			out[c][t] = scale * sum
		}
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func melFilterbank() [][]float64 {
	bins := featureFFTSize/2 + 1
	fMax := float64(featureSampleRate) / 2

	melMin := hzToMel(0)
	melMax := hzToMel(fMax)

	// Band edge frequencies, evenly spaced on the mel scale.
	edges := make([]float64, featureMelBands+2)
	for i := range edges {
		mel := melMin + (melMax-melMin)*float64(i)/float64(featureMelBands+1)
		edges[i] = melToHz(mel)
	}

	binFreqs := make([]float64, bins)
	for i := range binFreqs {
		binFreqs[i] = float64(i) * float64(featureSampleRate) / featureFFTSize
	}

	filters := make([][]float64, featureMelBands)
	for b := 0; b < featureMelBands; b++ {
		filters[b] = make([]float64, bins)
		lower, center, upper := edges[b], edges[b+1], edges[b+2]
		for i, f := range binFreqs {
			switch {
			case f > lower && f < center:
				filters[b][i] = (f - lower) / (center - lower)
			case f >= center && f < upper:
				filters[b][i] = (upper - f) / (upper - center)
			}
		}
	}
	return filters
}

func hzToMel(f float64) float64 {
	return 2595 * math.Log10(1+f/700)
}

func melToHz(m float64) float64 {
	return 700 * (math.Pow(10, m/2595) - 1)
}
