package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
)

func TestDecode(t *testing.T) {
	b, err := Decode([]byte(`{"files":{"index.html":"<html></html>","js\\app.js":"run()","./css/site.css":"body{}"}}`))
	require.NoError(t, err)

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []string{"css/site.css", "index.html", "js/app.js"}, b.Paths())

	body, ok := b.File("js/app.js")
	require.True(t, ok)
	assert.Equal(t, "run()", body)
	assert.True(t, b.Has(`js\app.js`), "lookups normalize separators too")
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"missing files", `{"version":"1"}`},
		{"null files", `{"files":null}`},
		{"non-string content", `{"files":{"index.html":42}}`},
		{"files is a list", `{"files":["index.html"]}`},
		{"parent escape", `{"files":{"../evil.sh":"x"}}`},
		{"nested escape", `{"files":{"a/../../evil.sh":"x"}}`},
		{"absolute path", `{"files":{"/etc/passwd":"x"}}`},
		{"empty path", `{"files":{"":"x"}}`},
		{"duplicate after normalization", `{"files":{"a/b.txt":"1","a\\b.txt":"2"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeParse), "got %v", err)
		})
	}
}

func TestDecodeEmptyFilesIsAllowed(t *testing.T) {
	b, err := Decode([]byte(`{"files":{}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Has("index.html"))
}

func TestBundleLookupOfInvalidPath(t *testing.T) {
	b, err := NewBundle(map[string]string{"index.html": "x"})
	require.NoError(t, err)

	_, ok := b.File("../index.html")
	assert.False(t, ok)
	assert.False(t, b.Has(""))
}
