package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"true", true},
		{"YES", true},
		{"1", true},
		{"on", true},
		{"off", false},
		{"nope", false},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("FLAG_STRICT_TOKEN_DECODE", tc.value)
			assert.Equal(t, tc.want, Enabled(StrictTokenDecode))
		})
	}
}

func TestLoadSnapshot(t *testing.T) {
	env := map[string]string{"FLAG_STRICT_TOKEN_DECODE": " On "}
	flags := Load(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.True(t, flags.Enabled(StrictTokenDecode))
	assert.False(t, flags.Enabled("unknown"))
	assert.Equal(t, "strict_token_decode", flags.LogValue().String())

	off := Load(func(string) (string, bool) { return "", false })
	assert.False(t, off.Enabled(StrictTokenDecode))
	assert.Equal(t, "", off.LogValue().String())
}
