package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"coca", "cola", "2"}, Tokenize("Coca-cola 2"))
	assert.Equal(t, []string{"star", "wars", "imperial", "star", "destroyer"}, Tokenize("Star Wars: Imperial Star-Destroyer!"))
	assert.Equal(t, []string{"240", "mg", "1", "count"}, Tokenize("240 mg,1 count"))
	assert.Equal(t, []string{"café", "crème"}, Tokenize("Café Crème"))
	assert.Empty(t, Tokenize(" -_- "))
}

func TestUniqueTokens(t *testing.T) {
	assert.Equal(t, []string{"star", "wars", "destroyer"}, UniqueTokens("Star wars star DESTROYER wars"))
	assert.Empty(t, UniqueTokens(""))
}
