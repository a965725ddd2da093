package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/set-night/audiodesc/internal/config"
	"github.com/set-night/audiodesc/internal/domain"
)

const (
	fileStateProcessing = "PROCESSING"
	fileStateActive     = "ACTIVE"
	fileStateFailed     = "FAILED"

	statusResourceExhausted = "RESOURCE_EXHAUSTED"
)

// RetryPolicy bounds retries of transient provider failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     config.RetryMaxAttempts,
		InitialInterval: config.RetryInitialInterval,
		MaxInterval:     config.RetryMaxInterval,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// GeminiService implements AIClient on the Gemini Files API and
// generateContent REST endpoints.
type GeminiService struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	retry        RetryPolicy
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewGeminiService(apiKey, baseURL, model string) *GeminiService {
	return &GeminiService{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		httpClient:   &http.Client{Timeout: config.RequestTimeout},
		retry:        DefaultRetryPolicy(),
		pollInterval: config.UploadPollInterval,
		pollTimeout:  config.UploadPollTimeout,
	}
}

type geminiFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"file_data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Upload sends data through the resumable upload protocol and waits until
// the file is ACTIVE. The returned ref is the file URI.
func (s *GeminiService) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	var file geminiFile
	err := s.withRetry(ctx, "upload", func() error {
		f, err := s.uploadOnce(ctx, data, mimeType)
		if err != nil {
			return err
		}
		file = *f
		return nil
	})
	if err != nil {
		return "", err
	}

	ready, err := s.waitActive(ctx, file)
	if err != nil {
		return "", err
	}
	return ready.URI, nil
}

func (s *GeminiService) uploadOnce(ctx context.Context, data []byte, mimeType string) (*geminiFile, error) {
	meta, err := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": "audiodesc-" + uuid.NewString()},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal upload metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("start upload: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyError("upload", resp.StatusCode, body)
	}
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return nil, &domain.ProviderError{Kind: domain.ProviderPermanent, Op: "upload", StatusCode: resp.StatusCode, Message: "missing upload url"}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	var out struct {
		File geminiFile `json:"file"`
	}
	if err := s.doJSON(req, "upload", &out); err != nil {
		return nil, err
	}
	return &out.File, nil
}

func (s *GeminiService) waitActive(ctx context.Context, file geminiFile) (*geminiFile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	for {
		switch file.State {
		case fileStateActive:
			return &file, nil
		case fileStateFailed:
			return nil, &domain.ProviderError{Kind: domain.ProviderPermanent, Op: "upload", Status: fileStateFailed, Message: "file processing failed: " + file.Name}
		case "", fileStateProcessing:
		default:
			return nil, &domain.ProviderError{Kind: domain.ProviderPermanent, Op: "upload", Status: file.State, Message: "unexpected file state: " + file.Name}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for file %s: %w", file.Name, ctx.Err())
		case <-time.After(s.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1beta/"+file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		var next geminiFile
		if err := s.doJSON(req, "get file", &next); err != nil {
			return nil, err
		}
		file = next
	}
}

// Query asks prompt about the file behind ref, replaying history first.
func (s *GeminiService) Query(ctx context.Context, ref, mimeType, prompt string, history []domain.Message) (string, error) {
	payload, err := json.Marshal(buildGenerateRequest(ref, mimeType, prompt, history))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var answer string
	err = s.withRetry(ctx, "generate", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.baseURL+"/v1beta/models/"+s.model+":generateContent", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		var out generateResponse
		if err := s.doJSON(req, "generate", &out); err != nil {
			return err
		}
		text, err := responseText(&out)
		if err != nil {
			return err
		}
		answer = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Delete removes the uploaded file. A file that is already gone is not an error.
func (s *GeminiService) Delete(ctx context.Context, ref string) error {
	name := fileName(ref)
	if name == "" {
		return fmt.Errorf("delete: unrecognized file ref")
	}

	ctx, cancel := context.WithTimeout(ctx, config.DeleteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.do(req)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return classifyError("delete", resp.StatusCode, body)
	}
	return nil
}

func (s *GeminiService) withRetry(ctx context.Context, op string, fn func() error) error {
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, s.retry.backOff(ctx), func(err error, wait time.Duration) {
		slog.Warn("gemini transient failure, retrying", "op", op, "error", err, "wait", wait)
	})
}

func (s *GeminiService) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("x-goog-api-key", s.apiKey)
	return s.httpClient.Do(req)
}

func (s *GeminiService) doJSON(req *http.Request, op string, out any) error {
	resp, err := s.do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyError(op, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	return nil
}

// classifyError maps an HTTP failure onto a provider error kind. Only quota
// and rate limit signals are transient.
func classifyError(op string, statusCode int, body []byte) *domain.ProviderError {
	pe := &domain.ProviderError{Kind: domain.ProviderPermanent, Op: op, StatusCode: statusCode}

	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Status != "" {
		pe.Status = apiErr.Error.Status
		pe.Message = apiErr.Error.Message
	} else {
		pe.Message = strings.TrimSpace(string(body))
	}

	if statusCode == http.StatusTooManyRequests || pe.Status == statusResourceExhausted {
		pe.Kind = domain.ProviderTransient
	}
	return pe
}

func buildGenerateRequest(ref, mimeType, prompt string, history []domain.Message) generateRequest {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, m := range history {
		parts := make([]geminiPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			parts = append(parts, geminiPart{Text: p})
		}
		contents = append(contents, geminiContent{Role: string(m.Role), Parts: parts})
	}
	contents = append(contents, geminiContent{
		Role: string(domain.RoleUser),
		Parts: []geminiPart{
			{FileData: &geminiFileData{MimeType: baseMimeType(mimeType), FileURI: ref}},
			{Text: prompt},
		},
	})

	return generateRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: config.SystemInstruction}}},
		Contents:          contents,
	}
}

func responseText(resp *generateResponse) (string, error) {
	if reason := resp.PromptFeedback.BlockReason; reason != "" {
		return "", &domain.ProviderError{Kind: domain.ProviderPermanent, Op: "generate", Status: reason, Message: "prompt blocked"}
	}
	if len(resp.Candidates) == 0 {
		return "", domain.ErrEmptyResponse
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", domain.ErrEmptyResponse
	}
	return b.String(), nil
}

// fileName extracts "files/abc" from a file URI or returns ref if it already
// is a resource name.
func fileName(ref string) string {
	i := strings.LastIndex(ref, "files/")
	if i < 0 {
		return ""
	}
	name := ref[i:]
	if name == "files/" {
		return ""
	}
	return name
}

func baseMimeType(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return mimeType
}
