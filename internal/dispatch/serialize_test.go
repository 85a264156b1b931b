package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceAndEscape(t *testing.T) {
	cases := map[string]struct {
		in   any
		want string
	}{
		"separators":       {map[string]any{"a": []int{1, 2}}, `{"a": [1, 2]}`},
		"punctuation kept": {"a:b, c", `"a:b, c"`},
		"escaped quote":    {`say "hi", ok`, `"say \"hi\", ok"`},
		"non ascii":        {"naïve", `"na\u00efve"`},
		"astral plane":     {"😀", `"\ud83d\ude00"`},
		"html unescaped":   {"<a&b>", `"<a&b>"`},
		"nested":           {map[string]any{"k": map[string]any{"x": nil}}, `{"k": {"x": null}}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := encodeValue(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(spaceAndEscape(raw)))
		})
	}
}

func TestEncodeCombined(t *testing.T) {
	out, err := encodeCombined(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))

	out, err = encodeCombined([]ragEntry{
		{name: "b", value: []byte(`{"score":1}`)},
		{name: "ä", value: []byte(`true`)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"b": {"score": 1}, "\u00e4": true}`, string(out))
}
