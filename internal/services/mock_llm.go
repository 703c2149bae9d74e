package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/modforge/pkg/prompts"
)

// MockUnitFile is a complete, lint-clean unit file used by the mock's
// default answers.
const MockUnitFile = `[core]
name: mock_unit
class: CustomUnitMetadata
price: 300
radius: 10
maxHp: 200
buildSpeed: 10
techLevel: 1

[graphics]
image: mock_unit.png

[movement]
movementType: LAND
`

// MockUnitEnvelope is the mock's default answer to generation requests.
const MockUnitEnvelope = `{"unitName":"mock_unit","iniContent":"[core]\nname: mock_unit\nclass: CustomUnitMetadata\nprice: 300\nradius: 10\nmaxHp: 200\nbuildSpeed: 10\ntechLevel: 1\n\n[graphics]\nimage: mock_unit.png\n\n[movement]\nmovementType: LAND\n","images":[{"name":"mock_unit.png","prompt":"a small grey tank"}],"sounds":[]}`

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	GenerateFunc  func(ctx context.Context, req *prompts.Request) (string, error)

	// Track calls for testing
	InitModelCalls []string
	GenerateCalls  []*prompts.Request

	responses map[prompts.Kind][]string
	mu        sync.Mutex // protects all fields above
}

var _ LLMService = (*MockLLMAPI)(nil)

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls: make([]string, 0),
		GenerateCalls:  make([]*prompts.Request, 0),
		responses:      make(map[prompts.Kind][]string),
	}
}

func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)

	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// Generate returns, in order: the GenerateFunc result, the next queued
// response for the request kind, or a default answer for the kind.
func (m *MockLLMAPI) Generate(ctx context.Context, req *prompts.Request) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, req)
	fn := m.GenerateFunc
	var queued string
	hasQueued := false
	if q := m.responses[req.Kind]; len(q) > 0 {
		queued, hasQueued = q[0], true
		m.responses[req.Kind] = q[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if hasQueued {
		return queued, nil
	}

	switch req.Kind {
	case prompts.KindGenerateFromText, prompts.KindGenerateFromImage:
		return MockUnitEnvelope, nil
	case prompts.KindRenameMod:
		return "MockMod", nil
	}
	return MockUnitFile, nil
}

// QueueResponses sets the answers for the next requests of kind.
func (m *MockLLMAPI) QueueResponses(kind prompts.Kind, responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[kind] = append(m.responses[kind], responses...)
}

// SetGenerateError sets up the mock to fail every Generate call
func (m *MockLLMAPI) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, req *prompts.Request) (string, error) {
		return "", err
	}
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLMAPI) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// Reset clears all call tracking and queued responses
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.GenerateCalls = make([]*prompts.Request, 0)
	m.responses = make(map[prompts.Kind][]string)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() ([]string, []*prompts.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)

	genCalls := make([]*prompts.Request, len(m.GenerateCalls))
	copy(genCalls, m.GenerateCalls)

	return initCalls, genCalls
}

// CallsOfKind returns the recorded requests of one kind.
func (m *MockLLMAPI) CallsOfKind(kind prompts.Kind) []*prompts.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*prompts.Request
	for _, c := range m.GenerateCalls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
