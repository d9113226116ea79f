package processors

import (
	"fmt"
	"image"
	"os"
	"sync"

	tokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"

	"videoJudge/config"
	"videoJudge/core"
)

const clipImageSize = 224

// CLIP preprocessing constants (RGB mean/std of the training distribution).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initONNXRuntime() error {
	ortInitOnce.Do(func() {
		if lib := os.Getenv("ONNXRUNTIME_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ClipClassifier runs a local CLIP model split into visual and text ONNX
// encoders. Every call recomputes label embeddings; no caching across calls.
type ClipClassifier struct {
	visual *ort.DynamicAdvancedSession
	text   *ort.DynamicAdvancedSession
	tok    *tokenizer.Tokenizer
	mu     sync.Mutex
}

func NewClipClassifier() (*ClipClassifier, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %v", err)
	}
	for _, p := range []string{cfg.ClipVisualModel, cfg.ClipTextModel, cfg.ClipTokenizer} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model asset missing: %s", p)
		}
	}

	tok, err := pretrained.FromFile(cfg.ClipTokenizer)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}

	// Use CUDA when the provider is available, otherwise stay on CPU.
	if cudaOpts, err := ort.NewCUDAProviderOptions(); err == nil {
		if err := cudaOpts.Update(map[string]string{"device_id": "0"}); err == nil {
			if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
				fmt.Printf("CUDA provider unavailable, using CPU: %v\n", err)
			}
		}
		cudaOpts.Destroy()
	}
	if err := opts.SetIntraOpNumThreads(0); err != nil {
		fmt.Printf("Warning: failed to set thread count: %v\n", err)
	}

	visual, err := ort.NewDynamicAdvancedSession(
		cfg.ClipVisualModel,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create visual session: %w", err)
	}

	text, err := ort.NewDynamicAdvancedSession(
		cfg.ClipTextModel,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		opts,
	)
	if err != nil {
		visual.Destroy()
		return nil, fmt.Errorf("create text session: %w", err)
	}

	return &ClipClassifier{visual: visual, text: text, tok: tok}, nil
}

func (c *ClipClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visual != nil {
		c.visual.Destroy()
		c.visual = nil
	}
	if c.text != nil {
		c.text.Destroy()
		c.text = nil
	}
}

func (c *ClipClassifier) Classify(framePath string, categories []string) (core.Classification, error) {
	cats := resolveCategories(categories)

	c.mu.Lock()
	defer c.mu.Unlock()

	imageEmbed, err := c.embedImage(framePath)
	if err != nil {
		return core.Classification{}, err
	}
	labelEmbeds, err := c.embedLabels(cats)
	if err != nil {
		return core.Classification{}, err
	}

	scores := make(map[string]float64, len(cats))
	for i, cat := range cats {
		scores[cat] = cosine32(imageEmbed, labelEmbeds[i])
	}

	return core.Classification{
		Embedding:     imageEmbed,
		Scores:        scores,
		TopCategories: topCategories(scores, cats, 3),
	}, nil
}

func (c *ClipClassifier) embedImage(framePath string) ([]float32, error) {
	pixels, err := loadPixelValues(framePath)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, clipImageSize, clipImageSize), pixels)
	if err != nil {
		return nil, fmt.Errorf("create pixel_values tensor: %w", err)
	}
	defer input.Destroy()

	outputs := make([]ort.Value, 1)
	if err := c.visual.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("visual inference: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("image_embeds tensor is not float32")
	}
	data := out.GetData()
	embed := make([]float32, len(data))
	copy(embed, data)
	return embed, nil
}

func (c *ClipClassifier) embedLabels(labels []string) ([][]float32, error) {
	inputs := make([]tokenizer.EncodeInput, len(labels))
	for i, l := range labels {
		inputs[i] = tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(l))
	}
	encodings, err := c.tok.EncodeBatch(inputs, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize labels: %w", err)
	}

	maxLen := 0
	for _, enc := range encodings {
		if l := len(enc.GetIds()); l > maxLen {
			maxLen = l
		}
	}

	n := len(encodings)
	inputIds := make([]int64, n*maxLen)
	attentionMask := make([]int64, n*maxLen)
	for i, enc := range encodings {
		ids := enc.GetIds()
		am := enc.GetAttentionMask()
		offset := i * maxLen
		for j := 0; j < len(ids) && j < maxLen; j++ {
			inputIds[offset+j] = int64(ids[j])
			attentionMask[offset+j] = int64(am[j])
		}
	}

	idsTensor, err := ort.NewTensor(ort.NewShape(int64(n), int64(maxLen)), inputIds)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(ort.NewShape(int64(n), int64(maxLen)), attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputs := make([]ort.Value, 1)
	if err := c.text.Run([]ort.Value{idsTensor, maskTensor}, outputs); err != nil {
		return nil, fmt.Errorf("text inference: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("text_embeds tensor is not float32")
	}
	shape := out.GetShape()
	if len(shape) != 2 || int(shape[0]) != n {
		return nil, fmt.Errorf("unexpected text_embeds shape %v", shape)
	}
	dim := int(shape[1])
	data := out.GetData()

	embeds := make([][]float32, n)
	for i := 0; i < n; i++ {
		embeds[i] = make([]float32, dim)
		copy(embeds[i], data[i*dim:(i+1)*dim])
	}
	return embeds, nil
}

// loadPixelValues decodes a frame, resizes to 224x224 and returns CHW
// float32 pixels normalized with the CLIP mean/std.
func loadPixelValues(framePath string) ([]float32, error) {
	f, err := os.Open(framePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %v", framePath, err)
	}

	resized := image.NewRGBA(image.Rect(0, 0, clipImageSize, clipImageSize))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	pixels := make([]float32, 3*clipImageSize*clipImageSize)
	plane := clipImageSize * clipImageSize
	for y := 0; y < clipImageSize; y++ {
		for x := 0; x < clipImageSize; x++ {
			offset := resized.PixOffset(x, y)
			idx := y*clipImageSize + x
			for ch := 0; ch < 3; ch++ {
				v := float32(resized.Pix[offset+ch]) / 255.0
				pixels[ch*plane+idx] = (v - clipMean[ch]) / clipStd[ch]
			}
		}
	}
	return pixels, nil
}
