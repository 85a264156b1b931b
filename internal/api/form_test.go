package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeForm(t *testing.T) {
	form := decodeForm("Body=50%25+off&Body=second&raw=50% off&tail=%4&bad=%zz&&flag&caf%C3%A9=ok")

	assert.Equal(t, "50% off", form.Get("Body"))
	assert.Equal(t, []string{"50% off", "second"}, form["Body"])
	assert.Equal(t, "50% off", form.Get("raw"))
	assert.Equal(t, "%4", form.Get("tail"))
	assert.Equal(t, "%zz", form.Get("bad"))
	assert.Equal(t, "ok", form.Get("café"))
	assert.Contains(t, form, "flag")
	assert.Empty(t, form.Get("flag"))
}

func TestUnescapeLenient(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"plain":      "plain",
		"a+b":        "a b",
		"%41%6a":     "Aj",
		"100%":       "100%",
		"%%41":       "%A",
		"%e2%9c%93!": "✓!",
	}
	for in, want := range cases {
		assert.Equal(t, want, unescapeLenient(in), in)
	}
}
