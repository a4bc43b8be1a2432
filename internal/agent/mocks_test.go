// internal/agent/mocks_test.go
package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

// MockInferenceClient mocks the schemas.InferenceClient boundary.
type MockInferenceClient struct {
	mock.Mock
}

func (m *MockInferenceClient) Infer(ctx context.Context, req schemas.InferenceRequest) (schemas.Action, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(schemas.Action), args.Error(1)
}

// MockExecutor mocks the schemas.ActionExecutor boundary.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockExecutor) Observe(ctx context.Context) (schemas.Observation, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.Observation), args.Error(1)
}

func (m *MockExecutor) Execute(ctx context.Context, action schemas.Action) (schemas.Observation, error) {
	args := m.Called(ctx, action)
	return args.Get(0).(schemas.Observation), args.Error(1)
}

// MockSink mocks the schemas.ObservationSink boundary.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Save(step int, obs schemas.Observation) error {
	args := m.Called(step, obs)
	return args.Error(0)
}
