package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"structify/internal/web/models"

	"go.uber.org/zap"
)

// ============================================================
// Remote Processor Client
// ============================================================

// ImageField имя multipart поля с изображением.
const ImageField = "image"

// ErrProcessingFailed единственная ошибка клиента: транспорт или не-2xx статус.
var ErrProcessingFailed = errors.New("processing failed")

// Image содержимое и метаданные отправляемого файла.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient создает клиента. timeout == 0 означает отсутствие таймаута.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With(zap.String("component", "backend")),
	}
}

// Endpoint полный адрес обработки.
func (c *Client) Endpoint() string {
	return c.baseURL + "/process"
}

// Process отправляет изображение (и пороги, если заданы) на /process
// и возвращает тело ответа как архив. Без ретраев.
func (c *Client) Process(ctx context.Context, img Image, thresholds models.Thresholds) ([]byte, error) {
	body, contentType, err := buildBody(img, thresholds)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProcessingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	c.log.Info("sending image",
		zap.String("endpoint", c.Endpoint()),
		zap.String("filename", img.Name),
		zap.Int("bytes", len(img.Data)),
		zap.Bool("thresholds", thresholds != nil))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("backend unreachable", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Warn("read backend response", zap.Error(err))
		return nil, fmt.Errorf("%w: read response: %v", ErrProcessingFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("backend rejected image", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: backend status %d", ErrProcessingFailed, resp.StatusCode)
	}

	c.log.Info("archive received",
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	return data, nil
}

func buildBody(img Image, thresholds models.Thresholds) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, ImageField, escapeQuotes(img.Name)))
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}

	if thresholds != nil {
		for _, field := range thresholds.Fields() {
			if err := writer.WriteField(field.Key, field.Value); err != nil {
				return nil, "", err
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
