package processors

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"videoJudge/config"
	"videoJudge/core"
)

// FrameSampler turns a video's frame stream into a bounded set of
// representative keyframes. Candidates are taken once per sampling interval;
// a candidate is kept only when its grayscale MSE against the last kept
// frame exceeds SceneThreshold. The first candidate is always kept.
type FrameSampler struct {
	IntervalSec    int
	SceneThreshold float64
}

func NewFrameSampler() *FrameSampler {
	s := &FrameSampler{IntervalSec: 1, SceneThreshold: 30.0}
	if cfg, err := config.Load(); err == nil {
		s.IntervalSec = cfg.SamplingIntervalSec
		s.SceneThreshold = cfg.SceneThreshold
	}
	return s
}

// KeyframeSampler is the sampling capability the pipeline depends on.
type KeyframeSampler interface {
	ExtractKeyframes(videoPath, framesDir string, maxFrames int) ([]core.Frame, []float64, error)
	GetVideoMetadata(videoPath string) (core.VideoMetadata, error)
}

type candidate struct {
	Path         string
	TimestampSec float64
	Gray         *image.Gray
}

// ExtractKeyframes dumps one candidate frame per sampling interval into
// framesDir, then keeps only the ones that pass scene-change gating.
// Discarded candidates are removed from disk. Returns parallel slices of
// frames and their source timestamps. maxFrames <= 0 means no cap.
func (s *FrameSampler) ExtractKeyframes(videoPath, framesDir string, maxFrames int) ([]core.Frame, []float64, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrNotFound, videoPath)
	}
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create frames dir: %v", err)
	}

	interval := s.IntervalSec
	if interval <= 0 {
		interval = 1
	}
	pattern := filepath.Join(framesDir, "%05d.jpg")
	args := []string{"-y", "-i", videoPath, "-vf", fmt.Sprintf("fps=1/%d", interval), pattern}
	if err := runFFmpeg(args); err != nil {
		return nil, nil, fmt.Errorf("extract frames from %s: %v", videoPath, err)
	}

	cands, err := s.loadCandidates(framesDir, interval)
	if err != nil {
		return nil, nil, err
	}

	frames, timestamps := s.selectKeyframes(cands, maxFrames)

	// Drop the files of candidates that were not retained.
	kept := make(map[string]bool, len(frames))
	for _, f := range frames {
		kept[f.Path] = true
	}
	for _, c := range cands {
		if !kept[c.Path] {
			_ = os.Remove(c.Path)
		}
	}

	return frames, timestamps, nil
}

// loadCandidates decodes the dumped candidate frames in index order and
// assigns each its source timestamp (index * interval; ffmpeg emits the
// first candidate at t=0).
func (s *FrameSampler) loadCandidates(framesDir string, intervalSec int) ([]candidate, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, err
	}
	cands := make([]candidate, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := name
		if ext := filepath.Ext(base); ext != "" {
			base = base[:len(base)-len(ext)]
		}
		i, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		path := filepath.Join(framesDir, name)
		gray, err := loadGray(path)
		if err != nil {
			return nil, fmt.Errorf("decode frame %s: %v", path, err)
		}
		cands = append(cands, candidate{
			Path:         path,
			TimestampSec: float64((i - 1) * intervalSec),
			Gray:         gray,
		})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].TimestampSec < cands[j].TimestampSec })
	return cands, nil
}

// selectKeyframes applies the scene-change gate over ordered candidates.
// The comparison baseline is the last retained frame; discarded candidates
// do not advance it.
func (s *FrameSampler) selectKeyframes(cands []candidate, maxFrames int) ([]core.Frame, []float64) {
	frames := make([]core.Frame, 0, len(cands))
	timestamps := make([]float64, 0, len(cands))
	var baseline *image.Gray

	for _, c := range cands {
		if baseline != nil && meanSquaredError(baseline, c.Gray) <= s.SceneThreshold {
			continue
		}
		frames = append(frames, core.Frame{TimestampSec: c.TimestampSec, Path: c.Path})
		timestamps = append(timestamps, c.TimestampSec)
		baseline = c.Gray
		if maxFrames > 0 && len(frames) >= maxFrames {
			break
		}
	}
	return frames, timestamps
}

// GetVideoMetadata reads container-level metadata only; no frame content is
// decoded. Duration is estimated as frameCount/fps.
func (s *FrameSampler) GetVideoMetadata(videoPath string) (core.VideoMetadata, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return core.VideoMetadata{}, fmt.Errorf("%w: %s", core.ErrNotFound, videoPath)
	}
	stream, err := probeVideoStream(videoPath)
	if err != nil {
		return core.VideoMetadata{}, fmt.Errorf("probe %s: %v", videoPath, err)
	}
	fps, err := parseFrameRate(stream.RFrameRate)
	if err != nil {
		return core.VideoMetadata{}, fmt.Errorf("parse frame rate for %s: %v", videoPath, err)
	}
	frameCount, _ := strconv.Atoi(stream.NbReadPackets)

	meta := core.VideoMetadata{
		FPS:        fps,
		FrameCount: frameCount,
		Width:      stream.Width,
		Height:     stream.Height,
	}
	if fps > 0 {
		meta.DurationSec = float64(frameCount) / fps
	}
	return meta, nil
}

func loadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return toGray(img), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return g
}

// meanSquaredError computes the per-pixel grayscale MSE between two frames.
// Mismatched dimensions count as a full scene change.
func meanSquaredError(a, b *image.Gray) float64 {
	if a.Bounds().Dx() != b.Bounds().Dx() || a.Bounds().Dy() != b.Bounds().Dy() {
		return 255 * 255
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := 0; x < w; x++ {
			d := float64(ra[x]) - float64(rb[x])
			sum += d * d
		}
	}
	return sum / float64(w*h)
}
