package rediscache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	require.Equal(t, "agri_translation:en:ml:abc", GenerateKey(TranslationKey, "en", "ml", "abc"))
	require.Equal(t, "agri_translation:", GenerateKey(TranslationKey))
	require.Equal(t, "agri_weather:thrissur", GenerateKey(WeatherKey, "thrissur"))
}

func TestNew_EmptyAddr(t *testing.T) {
	_, err := New(context.Background(), Config{Addr: " "})
	require.Error(t, err)
	require.Contains(t, err.Error(), "address")
}
