package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SearchVideos(ctx context.Context, query string, limit int) ([]VideoResult, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VideoResult), args.Error(1)
}

func TestHandleSearch(t *testing.T) {
	results := []VideoResult{
		{Title: "Song", Channel: "Channel", SourceURL: "https://www.youtube.com/watch?v=a", VideoID: "a"},
	}

	t.Run("success", func(t *testing.T) {
		p := new(mockProvider)
		p.On("SearchVideos", mock.Anything, "queen", 10).Return(results, nil)
		s := NewServer(p, nil, zerolog.Nop())

		req := httptest.NewRequest(http.MethodGet, "/v1/search?query=queen", nil)
		rec := httptest.NewRecorder()
		s.HandleSearch(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body SearchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, "Song", body.Items[0].Title)
		p.AssertExpectations(t)
	})

	t.Run("missing query", func(t *testing.T) {
		s := NewServer(new(mockProvider), nil, zerolog.Nop())
		req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
		rec := httptest.NewRecorder()
		s.HandleSearch(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("query too long", func(t *testing.T) {
		s := NewServer(new(mockProvider), nil, zerolog.Nop())
		long := strings.Repeat("a", 201)
		req := httptest.NewRequest(http.MethodGet, "/v1/search?query="+long, nil)
		rec := httptest.NewRecorder()
		s.HandleSearch(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("explicit limit", func(t *testing.T) {
		p := new(mockProvider)
		p.On("SearchVideos", mock.Anything, "queen", 5).Return(results, nil)
		s := NewServer(p, nil, zerolog.Nop())

		req := httptest.NewRequest(http.MethodGet, "/v1/search?query=queen&limit=5", nil)
		rec := httptest.NewRecorder()
		s.HandleSearch(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		p.AssertExpectations(t)
	})

	t.Run("out-of-range limit falls back", func(t *testing.T) {
		p := new(mockProvider)
		p.On("SearchVideos", mock.Anything, "queen", 10).Return(results, nil)
		s := NewServer(p, nil, zerolog.Nop())

		req := httptest.NewRequest(http.MethodGet, "/v1/search?query=queen&limit=500", nil)
		rec := httptest.NewRecorder()
		s.HandleSearch(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		p.AssertExpectations(t)
	})

	t.Run("provider failure", func(t *testing.T) {
		p := new(mockProvider)
		p.On("SearchVideos", mock.Anything, "queen", 10).Return(nil, errors.New("quota exceeded"))
		s := NewServer(p, nil, zerolog.Nop())

		req := httptest.NewRequest(http.MethodGet, "/v1/search?query=queen", nil)
		rec := httptest.NewRecorder()
		s.HandleSearch(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "failed to query provider", body["error"])
	})
}
