package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const visionPrompt = `Read the attached expense receipt and extract:
- "amount": the total amount paid, as a number (use a dot as decimal separator)
- "date": the date of the expense, formatted as YYYY-MM-DD

If a field cannot be read, use 0 for the amount and "" for the date.
Respond with a single JSON object containing exactly those two keys.`

// Extractor implements port.ExtractionProvider with GPT vision over the
// receipt bytes. PDF receipts are rasterized page by page first.
type Extractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewExtractor creates a vision-backed receipt extractor
func NewExtractor(apiKey, model string, logger *zap.Logger) *Extractor {
	return &Extractor{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// ExtractReceipt reads the amount and date off one receipt
func (e *Extractor) ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*port.ReceiptExtraction, error) {
	images, err := e.toImages(data, mimeType)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no readable pages in receipt")
	}

	// First page only; receipts are single-page documents in practice.
	return e.extractWithVision(ctx, images[0])
}

// toImages normalizes the receipt into JPEG bytes for the vision call
func (e *Extractor) toImages(data []byte, mimeType string) ([][]byte, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return [][]byte{data}, nil
	case mimeType == "application/pdf":
		return e.rasterizePDF(data)
	default:
		return nil, fmt.Errorf("unsupported receipt type: %s", mimeType)
	}
}

// rasterizePDF converts PDF pages to JPEG images using mupdf
func (e *Extractor) rasterizePDF(data []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var images [][]byte
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			e.logger.Warn("Failed to rasterize PDF page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		imgBytes, err := encodeJPEG(img)
		if err != nil {
			e.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		images = append(images, imgBytes)
	}

	return images, nil
}

func (e *Extractor) extractWithVision(ctx context.Context, imageData []byte) (*port.ReceiptExtraction, error) {
	base64Img := base64.StdEncoding.EncodeToString(imageData)

	contentParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: visionPrompt,
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64Img),
				Detail: openai.ImageURLDetailHigh,
			},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   512,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert in reading Brazilian expense receipts (notas fiscais e recibos). Always respond with valid JSON.",
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}

	content := resp.Choices[0].Message.Content

	var extraction port.ReceiptExtraction
	if err := json.Unmarshal([]byte(content), &extraction); err != nil {
		e.logger.Error("Failed to parse vision response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	e.logger.Debug("Receipt fields extracted",
		zap.Float64("amount", extraction.Amount),
		zap.String("date", extraction.Date))
	return &extraction, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Verify interface compliance
var _ port.ExtractionProvider = (*Extractor)(nil)
