package processors

import (
	"math"
	"testing"
)

func TestMelFilterbankShape(t *testing.T) {
	filters := melFilterbank()
	if len(filters) != featureMelBands {
		t.Fatalf("got %d filters, want %d", len(filters), featureMelBands)
	}
	bins := featureFFTSize/2 + 1
	for b, f := range filters {
		if len(f) != bins {
			t.Fatalf("filter %d has %d bins, want %d", b, len(f), bins)
		}
		var sum float64
		for _, w := range f {
			if w < 0 {
				t.Fatalf("filter %d has negative weight", b)
			}
			sum += w
		}
		if sum == 0 {
			t.Errorf("filter %d is all zero", b)
		}
	}
}

func TestMelSpectrogramSilence(t *testing.T) {
	samples := make([]float64, featureFFTSize+featureHopSize*3)
	mel := melSpectrogram(samples)

	if len(mel) != featureMelBands {
		t.Fatalf("got %d bands, want %d", len(mel), featureMelBands)
	}
	wantFrames := 1 + (len(samples)-featureFFTSize)/featureHopSize
	if len(mel[0]) != wantFrames {
		t.Fatalf("got %d frames, want %d", len(mel[0]), wantFrames)
	}
	// Silence floors at the log of the minimum power.
	floor := math.Log(1e-10)
	for b := range mel {
		for _, v := range mel[b] {
			if v != floor {
				t.Fatalf("silent frame band value = %v, want %v", v, floor)
			}
		}
	}
}

func TestMFCCShape(t *testing.T) {
	samples := make([]float64, featureFFTSize*2)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / featureSampleRate)
	}
	out := mfcc(melSpectrogram(samples))

	if len(out) != featureMFCCCount {
		t.Fatalf("got %d coefficients, want %d", len(out), featureMFCCCount)
	}
	wantFrames := 1 + (len(samples)-featureFFTSize)/featureHopSize
	if len(out[0]) != wantFrames {
		t.Errorf("got %d frames, want %d", len(out[0]), wantFrames)
	}
}
