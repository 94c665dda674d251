// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/nvd"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) NVD() config.NVDConfig {
	args := m.Called()
	return args.Get(0).(config.NVDConfig)
}

func (m *MockConfig) Search() config.SearchConfig {
	args := m.Called()
	return args.Get(0).(config.SearchConfig)
}

func (m *MockConfig) LLM() config.LLMConfig {
	args := m.Called()
	return args.Get(0).(config.LLMConfig)
}

func (m *MockConfig) Cache() config.CacheConfig {
	args := m.Called()
	return args.Get(0).(config.CacheConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	args := m.Called()
	return args.Get(0).(config.ReportConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

// -- LLM Client Mock --

// MockLLMClient mocks schemas.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Search Client Mock --

// MockSearchClient mocks schemas.SearchClient.
type MockSearchClient struct {
	mock.Mock
}

func (m *MockSearchClient) Search(ctx context.Context, query string, maxResults int, depth schemas.SearchDepth) *schemas.SearchResponse {
	args := m.Called(ctx, query, maxResults, depth)
	return args.Get(0).(*schemas.SearchResponse)
}

// -- CVE Source Mock --

// MockCVESource mocks the NVD client.
type MockCVESource struct {
	mock.Mock
}

func (m *MockCVESource) Search(ctx context.Context, software string, daysBack, maxResults int) *nvd.SearchResult {
	args := m.Called(ctx, software, daysBack, maxResults)
	return args.Get(0).(*nvd.SearchResult)
}

// -- Store Mock --

// MockStore mocks the audit recorder.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveAssessment(ctx context.Context, out *schemas.AssessmentOutput) error {
	args := m.Called(ctx, out)
	return args.Error(0)
}

// -- Pipeline Mock --

// MockPipeline mocks the single-assessment entry point used by the HTTP and CLI surfaces.
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Run(ctx context.Context, company, software string) (*schemas.AssessmentOutput, error) {
	args := m.Called(ctx, company, software)
	out, _ := args.Get(0).(*schemas.AssessmentOutput)
	return out, args.Error(1)
}

// -- Helpers --

// SearchResponse builds a successful response from title/content pairs.
func SearchResponse(query string, pairs ...[2]string) *schemas.SearchResponse {
	resp := &schemas.SearchResponse{Query: query, Results: []schemas.SearchResult{}}
	for i, p := range pairs {
		resp.Results = append(resp.Results, schemas.SearchResult{
			Title:   p[0],
			Content: p[1],
			URL:     "https://example.com/" + string(rune('a'+i)),
		})
	}
	return resp
}

// FailedSearch builds a soft-failed response.
func FailedSearch(query, msg string) *schemas.SearchResponse {
	return &schemas.SearchResponse{Query: query, Results: []schemas.SearchResult{}, Error: msg}
}
