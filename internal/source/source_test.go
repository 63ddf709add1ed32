package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://chat.truffle.vip/browser-source/org/scene-x", false},
		{"https://TRUFFLE.example.com/chat", false},
		{"http://localhost:8080/chat", false},
		{"http://127.0.0.1/chat", false},
		{"https://www.twitch.tv/popout/chat", true},
		{"https://example.com/truffle", true},
		{"", true},
		{"://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := Supported(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("Supported(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSupportedWrapsSentinel(t *testing.T) {
	err := Supported("https://example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedSite))
}

func TestDecodeRecords(t *testing.T) {
	raw := []byte(`[
		{"id": "m1", "author": "Ann", "body": "!tts hello"},
		{"id": "", "author": "Bob", "body": "partial"},
		{"id": "m3", "author": "Cy", "body": ""}
	]`)

	recs, err := decodeRecords(raw)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{ID: "m1", Author: "Ann", Body: "!tts hello"},
		{ID: "", Author: "Bob", Body: "partial"},
		{ID: "m3", Author: "Cy", Body: ""},
	}, recs)

	recs, err = decodeRecords([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = decodeRecords([]byte(`{"id": 1}`))
	assert.Error(t, err)
}
