package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Name":           "name",
		"  Email  ":      "email",
		"Company Name":   "company_name",
		"PIN   Code":     "pin_code",
		"already_normal": "already_normal",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), "key %q", in)
	}
}

func TestMatch(t *testing.T) {
	t.Run("core fields", func(t *testing.T) {
		for _, key := range []string{"name", "Email", "PHONE", "Company"} {
			normalized, core, ok := Match(key)
			assert.True(t, ok, "key %q", key)
			assert.True(t, core, "key %q", key)
			assert.NotEmpty(t, normalized)
		}
	})

	t.Run("attribute fields", func(t *testing.T) {
		for _, key := range []string{"Designation", "city", "State", "Country", "Pincode", "Website"} {
			normalized, core, ok := Match(key)
			assert.True(t, ok, "key %q", key)
			assert.False(t, core, "key %q", key)
			assert.NotEmpty(t, normalized)
		}
	})

	t.Run("unknown keys pass through", func(t *testing.T) {
		for _, key := range []string{"tshirt_size", "Dietary Preference", "booth"} {
			_, _, ok := Match(key)
			assert.False(t, ok, "key %q", key)
		}
	})
}
