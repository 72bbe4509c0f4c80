package frontier

import (
	"testing"

	"news-scraper/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkMessagesRoundTrip(t *testing.T) {
	links := []models.ChildLink{
		{URL: "https://www.tempo.co/a", Summary: "ringkasan"},
		{URL: "https://www.tempo.co/b"},
	}
	msgs, err := linkMessages(links)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "https://www.tempo.co/a", string(msgs[0].Key))
	assert.JSONEq(t, `{"url":"https://www.tempo.co/b"}`, string(msgs[1].Value))

	for i, m := range msgs {
		assert.Equal(t, links[i], decodeLink(m.Value))
	}
}

func TestDecodeLink_PlainURL(t *testing.T) {
	assert.Equal(t, models.ChildLink{URL: "https://www.jpnn.com/news/1"}, decodeLink([]byte("https://www.jpnn.com/news/1")))
}
