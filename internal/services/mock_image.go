package services

import (
	"context"
	"encoding/base64"
	"sync"
)

// MockImageDataURL is the 1x1 PNG returned by MockImageService by default.
var MockImageDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
})

type ImageCall struct {
	Prompt      string
	AspectRatio string
}

// MockImageService is a mock implementation of ImageService for testing
type MockImageService struct {
	GenerateImageFunc func(ctx context.Context, prompt string, aspectRatio string) (string, error)

	Calls []ImageCall
	mu    sync.Mutex
}

var _ ImageService = (*MockImageService)(nil)

func NewMockImageService() *MockImageService {
	return &MockImageService{Calls: make([]ImageCall, 0)}
}

func (m *MockImageService) GenerateImage(ctx context.Context, prompt string, aspectRatio string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ImageCall{Prompt: prompt, AspectRatio: aspectRatio})
	fn := m.GenerateImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, aspectRatio)
	}
	return MockImageDataURL, nil
}

// SetError sets up the mock to fail every call
func (m *MockImageService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageFunc = func(ctx context.Context, prompt string, aspectRatio string) (string, error) {
		return "", err
	}
}

// GetCalls returns a copy of the recorded calls
func (m *MockImageService) GetCalls() []ImageCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ImageCall, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}
