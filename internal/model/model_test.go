package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"United States", "us"},
		{"united kingdom", "gb"},
		{"  Kenya ", "ke"},
		{"us", "us"},
		{"Atlantis", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCountry(tt.in))
		})
	}
}

func TestCountriesAllNormalize(t *testing.T) {
	for _, c := range Countries {
		assert.Len(t, NormalizeCountry(c), 2, c)
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "business", NormalizeCategory("Business"))
	assert.Equal(t, "technology", NormalizeCategory(" technology"))
	assert.Equal(t, "", NormalizeCategory("Gardening"))
	assert.Equal(t, "", NormalizeCategory(""))
}

func TestFilters_Normalize(t *testing.T) {
	f := Filters{Country: "Germany", Category: "Sports"}.Normalize()
	assert.Equal(t, Filters{Country: "de", Category: "sports"}, f)

	// Search ignores country and category.
	f = Filters{Country: "Germany", Category: "Sports", Query: "  election "}.Normalize()
	assert.Equal(t, Filters{Query: "election"}, f)
	assert.True(t, f.IsSearch())
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, MessageNetwork, ErrorMessage(fmt.Errorf("fetch: %w", ErrNetwork)))
	assert.Equal(t, MessageUnknown, ErrorMessage(ErrUnknown))
	assert.Equal(t, MessageUnknown, ErrorMessage(errors.New("boom")))

	apiErr := &APIError{StatusCode: 401, Code: "apiKeyInvalid", Message: "Your API key is invalid"}
	assert.Equal(t, "Your API key is invalid", ErrorMessage(fmt.Errorf("page 0: %w", apiErr)))
	assert.Equal(t, MessageUnknown, ErrorMessage(&APIError{StatusCode: 500}))
}

func TestArticle_Key(t *testing.T) {
	a := Article{Title: "T1", URL: "https://a"}
	b := Article{Title: "T1", URL: "https://b"}
	assert.Equal(t, a.Key(), b.Key())
}
