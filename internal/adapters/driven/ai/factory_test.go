package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/config"
	"github.com/custodia-labs/campus/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.EmbeddingConfig
		wantErr     bool
		errContains string
	}{
		{
			name: "openai creates service",
			cfg: config.EmbeddingConfig{
				APIKey:     "sk-test",
				Model:      "text-embedding-3-small",
				Dimensions: 512,
			},
		},
		{
			name:        "missing key fails",
			cfg:         config.EmbeddingConfig{Model: "text-embedding-3-small"},
			wantErr:     true,
			errContains: "OPENAI_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Dimensions, svc.Dimensions())
			assert.Equal(t, tt.cfg.Model, svc.ModelName())
		})
	}
}

func TestCreateGenerationService(t *testing.T) {
	t.Run("no model returns nil", func(t *testing.T) {
		svc, err := CreateGenerationService(config.GenerationConfig{})
		require.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("missing key fails", func(t *testing.T) {
		_, err := CreateGenerationService(config.GenerationConfig{Model: "gpt-4o-mini"})
		assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	})

	t.Run("configured", func(t *testing.T) {
		svc, err := CreateGenerationService(config.GenerationConfig{Model: "gpt-4o-mini", APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", svc.ModelName())
	})
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(context.Background(), struct{}{}))
	assert.NoError(t, Validate(context.Background(), fakePinger{}))
	assert.Error(t, Validate(context.Background(), fakePinger{err: errors.New("unreachable")}))
}

func TestValidate_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer srv.Close()

	svc, err := CreateEmbeddingService(config.EmbeddingConfig{APIKey: "k", BaseURL: srv.URL, Model: "m", Dimensions: 3})
	require.NoError(t, err)

	assert.NoError(t, Validate(context.Background(), svc))
}
