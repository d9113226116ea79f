package processors

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"videoJudge/config"
	"videoJudge/core"
)

// EmbeddingClassifier scores frames through an OpenAI-compatible endpoint:
// the image goes through the multimodal embedding route, labels through the
// text embedding model, and similarity is the cosine between the two.
type EmbeddingClassifier struct {
	images *multimodalEmbeddingClient
	texts  *openai.Client
	model  string
	dim    int
}

func NewEmbeddingClassifier() (*EmbeddingClassifier, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cli, err := config.NewOpenAIClient()
	if err != nil {
		return nil, err
	}
	return &EmbeddingClassifier{
		images: newMultimodalEmbeddingClient(cfg),
		texts:  cli,
		model:  cfg.EmbeddingModel,
		dim:    cfg.EmbeddingDim,
	}, nil
}

func (c *EmbeddingClassifier) Classify(framePath string, categories []string) (core.Classification, error) {
	cats := resolveCategories(categories)
	ctx := context.Background()

	data, err := os.ReadFile(framePath)
	if err != nil {
		return core.Classification{}, fmt.Errorf("read frame %s: %v", framePath, err)
	}
	imageEmbed, err := c.images.CreateImageEmbedding(ctx, data)
	if err != nil {
		return core.Classification{}, fmt.Errorf("embed frame %s: %v", framePath, err)
	}

	resp, err := c.texts.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.model),
		Input:      cats,
		Dimensions: c.dim,
	})
	if err != nil {
		return core.Classification{}, fmt.Errorf("embed labels: %v", err)
	}
	if len(resp.Data) != len(cats) {
		return core.Classification{}, fmt.Errorf("embedding count mismatch: got %d for %d labels", len(resp.Data), len(cats))
	}

	scores := make(map[string]float64, len(cats))
	for i, cat := range cats {
		scores[cat] = cosine32(imageEmbed, resp.Data[i].Embedding)
	}

	return core.Classification{
		Embedding:     imageEmbed,
		Scores:        scores,
		TopCategories: topCategories(scores, cats, 3),
	}, nil
}

// multimodalEmbeddingClient calls the image-capable embedding route of an
// OpenAI-compatible endpoint directly; go-openai has no binding for it.
type multimodalEmbeddingClient struct {
	apiKey  string
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

func newMultimodalEmbeddingClient(cfg *config.Config) *multimodalEmbeddingClient {
	return &multimodalEmbeddingClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.EmbeddingModel,
		dim:     cfg.EmbeddingDim,
		client:  &http.Client{},
	}
}

type multimodalEmbeddingRequest struct {
	Model      string            `json:"model"`
	Input      []multimodalInput `json:"input"`
	Dimensions int               `json:"dimensions,omitempty"`
}

type multimodalInput struct {
	Type     string              `json:"type"`
	ImageURL *multimodalImageURL `json:"image_url,omitempty"`
}

type multimodalImageURL struct {
	URL string `json:"url"`
}

type multimodalEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *multimodalEmbeddingClient) CreateImageEmbedding(ctx context.Context, jpeg []byte) ([]float32, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
	req := multimodalEmbeddingRequest{
		Model:      c.model,
		Input:      []multimodalInput{{Type: "image_url", ImageURL: &multimodalImageURL{URL: dataURL}}},
		Dimensions: c.dim,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings/multimodal", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(b))
	}

	var parsed multimodalEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %v", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return parsed.Data[0].Embedding, nil
}
