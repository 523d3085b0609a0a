package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFileText(t *testing.T) {
	for _, declared := range []string{"txt", "text", ".txt", "TXT"} {
		got, err := FromFile([]byte("plain content"), declared)
		require.NoError(t, err, "type %q", declared)
		assert.Equal(t, "plain content", got)
	}
}

func TestFromFileUnsupported(t *testing.T) {
	_, err := FromFile([]byte("data"), "docx")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestFromFileCorruptPDF(t *testing.T) {
	_, err := FromFile([]byte("this is not a pdf"), "pdf")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestStoreUpload(t *testing.T) {
	store, err := NewDirContentStore(t.TempDir())
	require.NoError(t, err)

	locator, err := StoreUpload(store, []byte("%PDF-1.4 ..."), "brief.PDF")
	require.NoError(t, err)
	assert.Equal(t, ".PDF", filepath.Ext(locator))

	data, err := os.ReadFile(locator)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 ...", string(data))
}

func newTestFetcher(t *testing.T, opts ...FetcherOption) (*Fetcher, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewDirContentStore(dir)
	require.NoError(t, err)
	opts = append(opts, withSleep(func(time.Duration) {}))
	return NewFetcher(store, opts...), dir
}

func TestFromURLGeneric(t *testing.T) {
	page := `<html><head><title>City Ordinances</title><script>bad()</script></head>
<body>
<nav>Home | About</nav>
<header>Site Header</header>
<p>Section 1. No parking on Main Street.</p>

<p>Section 2. Quiet hours begin at 10pm.</p>
<footer>Copyright</footer>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	fetcher, dir := newTestFetcher(t)
	text, locator, err := fetcher.FromURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Section 1. No parking on Main Street.")
	assert.Contains(t, text, "Section 2. Quiet hours begin at 10pm.")
	assert.NotContains(t, text, "bad()")
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "Site Header")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "\n\n", "blank-line runs must be collapsed")

	assert.True(t, strings.HasPrefix(filepath.Base(locator), "web_"))
	assert.Equal(t, filepath.Dir(locator), dir)
	stored, err := os.ReadFile(locator)
	require.NoError(t, err)
	assert.Equal(t, text, string(stored))
}

func TestFromURLRetriesThenSucceeds(t *testing.T) {
	var agents []string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html><body><p>finally</p></body></html>"))
	}))
	defer srv.Close()

	var slept []time.Duration
	dir := t.TempDir()
	store, err := NewDirContentStore(dir)
	require.NoError(t, err)
	fetcher := NewFetcher(store, withSleep(func(d time.Duration) { slept = append(slept, d) }))

	text, _, err := fetcher.FromURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "finally")

	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
	// Each attempt presents a different client identity.
	require.Len(t, agents, 3)
	assert.NotEqual(t, agents[0], agents[1])
	assert.NotEqual(t, agents[1], agents[2])
}

func TestFromURLExhaustsRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t)
	_, _, err := fetcher.FromURL(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction))
	assert.Equal(t, 3, calls)
}

func TestFromURLConnectionRefused(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	fetcher, _ := newTestFetcher(t)
	_, _, err := fetcher.FromURL(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction))
	assert.Contains(t, err.Error(), "connection failed")
}

func TestExtractAmlegal(t *testing.T) {
	page := `<html><head><title>Municipal Code</title></head><body>
<div class="main-content">
<section>
<h1>Chapter 1: General Provisions</h1>
<p>These ordinances govern the municipality.</p>
<div id="id_skiptocontent">Skip to content</div>
</section>
<table>
<tr><th>Section</th><th>Title</th></tr>
<tr><td>1.01</td><td>Definitions</td></tr>
</table>
</div>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	text := extractAmlegal(doc)
	assert.Contains(t, text, "Municipal Code")
	assert.Contains(t, text, "Chapter 1: General Provisions")
	assert.Contains(t, text, "These ordinances govern the municipality.")
	assert.Contains(t, text, "Section | Title")
	assert.Contains(t, text, "1.01 | Definitions")
	assert.NotContains(t, text, "Skip to content")
}

func TestExtractAmlegalFallsBackToGeneric(t *testing.T) {
	page := `<html><head><title>Odd Layout</title></head><body><p>loose text</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	text := extractAmlegal(doc)
	assert.Contains(t, text, "loose text")
}
