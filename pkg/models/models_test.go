package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "tweetcrawl/pkg/errors"
)

func TestParseDateFallback(t *testing.T) {
	primary, err := ParseDate("2024-03-01")
	require.NoError(t, err)

	fallback, err := ParseDate("01/03/2024")
	require.NoError(t, err)

	assert.True(t, primary.Equal(fallback))
	assert.Equal(t, NewDate(2024, time.March, 1), fallback)
	assert.Equal(t, "2024-03-01", fallback.String())
}

func TestParseDateInvalid(t *testing.T) {
	for _, raw := range []string{"", "2024/03/01", "March 1", "31/31/2024"} {
		_, err := ParseDate(raw)
		require.Error(t, err, raw)
		assert.True(t, errs.IsType(err, errs.ErrorTypeDateParse), raw)
	}
}

func TestWindowClassify(t *testing.T) {
	w, err := NewWindow("2024-03-01", "2024-03-05")
	require.NoError(t, err)

	tests := []struct {
		date string
		want Position
	}{
		{"2024-02-28", Before},
		{"2024-03-10", After},
		{"2024-03-03", Inside},
		{"2024-03-01", Inside},
		{"2024-03-05", Inside},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Classify(MustParseDate(tt.date)))
		})
	}
}

func TestNewWindowRejectsInverted(t *testing.T) {
	_, err := NewWindow("2024-03-05", "2024-03-01")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfiguration))

	_, err = NewWindow("soon", "2024-03-01")
	assert.Error(t, err)
}

func TestItemJSONKeys(t *testing.T) {
	item := Item{
		Text:       "hello",
		URL:        "https://twitter.com/a/status/1",
		Date:       "2024-03-03",
		Media:      MediaImage,
		ImageURLs:  []string{"https://pbs.twimg.com/media/x.jpg"},
		NumLike:    3,
		IsReshare:  true,
		NumReshare: 1,
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range Columns {
		assert.Contains(t, raw, key)
	}
	assert.Len(t, raw, len(Columns))
	assert.Equal(t, "Image", raw["media_type"])
	assert.Equal(t, true, raw["is_retweet"])

	var back Item
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, item, back)
}

func TestMediaKindUnknown(t *testing.T) {
	var m MediaKind
	assert.Error(t, json.Unmarshal([]byte(`"GIF"`), &m))
	assert.Equal(t, "No media", MediaNone.String())
	assert.Equal(t, "Video", MediaVideo.String())
}

func TestDateJSON(t *testing.T) {
	w := Window{Start: MustParseDate("2024-03-01"), End: MustParseDate("05/03/2024")}
	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2024-03-01","end":"2024-03-05"}`, string(data))

	var back Window
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, w, back)

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`""`), &empty))
	assert.True(t, empty.IsZero())
}

func TestPreview(t *testing.T) {
	item := Item{Text: "héllo wörld"}
	assert.Equal(t, "héllo", item.Preview(5))
	assert.Equal(t, "héllo wörld", item.Preview(50))
}
