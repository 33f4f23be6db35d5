package inourtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/httpclient"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>In Our Time</title>
<item>
  <guid>urn:bbc:podcast:m001</guid>
  <title>The Siege of Malta</title>
  <link>https://www.bbc.co.uk/programmes/m001</link>
  <pubDate>Thu, 21 Sep 2023 09:00:00 +0100</pubDate>
  <description>Melvyn Bragg discusses the Ottoman siege of Malta.</description>
</item>
<item>
  <guid>urn:bbc:podcast:m002</guid>
  <title>Plato's Republic</title>
  <link>https://www.bbc.co.uk/programmes/m002</link>
  <pubDate>Thu, 14 Sep 2023 09:00:00 +0100</pubDate>
</item>
</channel></rss>`

const programmePage = `<html>
<head><meta name="description" content="Short meta description"></head>
<body>
  <div class="synopsis-toggle__long">
    <p>Full description of the episode.</p>
    <p>With</p>
    <p>Professor Alice Smith</p>
    <p>and</p>
    <p>Dr. Bob Jones</p>
    <p>Reading list:</p>
    <p>Some Book by Author (Publisher, 2020)</p>
  </div>
</body>
</html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFeedProviderFetchCurrentFeed(t *testing.T) {
	server := serve(t, http.StatusOK, feedXML)
	p := NewFeedProvider(httpclient.New(httpclient.Options{Type: httpclient.BotClient}), server.URL)

	items, err := p.FetchCurrentFeed(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "The Siege of Malta", items[0].Title)
	assert.Equal(t, "urn:bbc:podcast:m002", items[1].GUID)
}

func TestFeedProviderFetchError(t *testing.T) {
	server := serve(t, http.StatusServiceUnavailable, "")
	p := NewFeedProvider(httpclient.New(httpclient.Options{}), server.URL)

	_, err := p.FetchCurrentFeed(context.Background())

	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
}

func TestFeedProviderIsComplete(t *testing.T) {
	p := NewFeedProvider(nil, "")

	assert.True(t, p.IsFeedComplete())
	historic, err := p.FetchHistoricFeed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, historic)
	assert.Equal(t, FeedURL, p.url)
}

func TestEnricherParsesProgrammePage(t *testing.T) {
	server := serve(t, http.StatusOK, programmePage)
	e := NewEnricher(httpclient.New(httpclient.Options{}))

	fields := e.Enrich(context.Background(), domain.FeedItem{Link: server.URL})

	assert.Equal(t, "Full description of the episode.", fields.Description)
	assert.Equal(t, []string{"Professor Alice Smith", "Dr. Bob Jones"}, fields.Contributors)
	assert.Equal(t, []string{"Some Book by Author (Publisher, 2020)"}, fields.ReadingList)
}

func TestEnricherHandlesHTTPError(t *testing.T) {
	server := serve(t, http.StatusNotFound, "missing")
	e := NewEnricher(httpclient.New(httpclient.Options{}))

	fields := e.Enrich(context.Background(), domain.FeedItem{Link: server.URL})

	assert.True(t, fields.IsEmpty())
}

func TestParsePageFallbacks(t *testing.T) {
	e := NewEnricher(nil)

	// Test Case 1: short synopsis when the long one is absent
	fields, err := e.ParsePage([]byte(`<div class="synopsis-toggle__short"><p>Short synopsis.</p></div>`))
	require.NoError(t, err)
	assert.Equal(t, "Short synopsis.", fields.Description)
	assert.Empty(t, fields.Contributors)

	// Test Case 2: meta description
	fields, err = e.ParsePage([]byte(`<html><head><meta name="description" content="Melvyn Bragg explores ideas."></head><body></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Melvyn Bragg explores ideas.", fields.Description)

	// Test Case 3: og:description
	fields, err = e.ParsePage([]byte(`<html><head><meta property="og:description" content="OG text"></head></html>`))
	require.NoError(t, err)
	assert.Equal(t, "OG text", fields.Description)
}
