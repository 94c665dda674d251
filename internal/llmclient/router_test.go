package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

// -- Test Setup Helper --

func setupRouter(t *testing.T) (*LLMRouter, *MockLLMClient, *MockLLMClient, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := setupTestLogger(t)

	fastClient := &MockLLMClient{Name: "FastClient"}
	powerfulClient := &MockLLMClient{Name: "PowerfulClient"}

	router, err := NewLLMRouter(logger, fastClient, powerfulClient)
	require.NoError(t, err)
	return router, fastClient, powerfulClient, logs
}

// -- Test Cases: Initialization --

func TestNewLLMRouter_Failure_MissingClients(t *testing.T) {
	logger, _ := setupTestLogger(t)
	valid := new(MockLLMClient)

	tests := []struct {
		name     string
		fast     schemas.LLMClient
		powerful schemas.LLMClient
	}{
		{"Missing Fast Client", nil, valid},
		{"Missing Powerful Client", valid, nil},
		{"Missing Both Clients", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewLLMRouter(logger, tt.fast, tt.powerful)
			require.Error(t, err)
			assert.Nil(t, router)
			assert.Contains(t, err.Error(), "both fast and powerful tier clients must be provided")
		})
	}
}

// -- Test Cases: Routing Logic --

func TestGenerate_Routing(t *testing.T) {
	tests := []struct {
		name     string
		tier     schemas.ModelTier
		wantFast bool
	}{
		{"fast tier", schemas.TierFast, true},
		{"powerful tier", schemas.TierPowerful, false},
		{"default tier", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, fast, powerful, logs := setupRouter(t)
			req := schemas.GenerationRequest{UserPrompt: "hi", Tier: tt.tier}

			target, other := powerful, fast
			if tt.wantFast {
				target, other = fast, powerful
			}
			target.On("Generate", mock.Anything, req).Return("ok", nil).Once()

			got, err := router.Generate(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, "ok", got)

			target.AssertExpectations(t)
			other.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
			assert.Equal(t, 1, logs.FilterMessage("Routing LLM request").Len())
		})
	}
}

func TestGenerate_ErrorPropagation(t *testing.T) {
	router, _, powerful, _ := setupRouter(t)
	boom := errors.New("quota exceeded")
	powerful.On("Generate", mock.Anything, mock.Anything).Return("", boom)

	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierPowerful})
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_InvalidTier(t *testing.T) {
	router, _, _, _ := setupRouter(t)
	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: "enormous"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM client configured for tier: enormous")
}

func TestRouterClose(t *testing.T) {
	t.Run("closes each client once", func(t *testing.T) {
		logger, _ := setupTestLogger(t)
		shared := &MockLLMClient{}
		shared.On("Close").Return(nil).Once()

		router, err := NewLLMRouter(logger, shared, shared)
		require.NoError(t, err)
		require.NoError(t, router.Close())
		shared.AssertNumberOfCalls(t, "Close", 1)
	})

	t.Run("joins errors", func(t *testing.T) {
		router, fast, powerful, _ := setupRouter(t)
		fast.On("Close").Return(errors.New("fast close"))
		powerful.On("Close").Return(nil)

		err := router.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fast close")
	})
}
