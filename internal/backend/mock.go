package backend

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a testify mock of Backend for cascade and pipeline tests.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBackend) Submit(ctx context.Context, system, prompt string) (*Response, error) {
	args := m.Called(ctx, system, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}
