package extract

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const maxFetchAttempts = 3

// userAgents is rotated across attempts; some publishers reject repeated
// identical client identities.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
	"Mozilla/5.0 (compatible; LexRAGBot/1.0)",
}

var blankRuns = regexp.MustCompile(`\n\s*\n+`)

// Fetcher downloads web pages, extracts their text and persists it.
type Fetcher struct {
	client *http.Client
	store  ContentStore
	log    *zap.Logger

	// sleep is replaceable in tests so backoff does not run in real time.
	sleep func(time.Duration)
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// WithFetchLogger sets the structured logger.
func WithFetchLogger(log *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

func withSleep(sleep func(time.Duration)) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

// NewFetcher creates a Fetcher persisting extracted text to store.
func NewFetcher(store ContentStore, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
		store:  store,
		log:    zap.NewNop(),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FromURL fetches the page, extracts its visible text and persists it to the
// content store. Up to three attempts with exponential backoff; timeouts,
// connection failures and other transport errors are all retried, then fail
// terminally with ErrExtraction.
func (f *Fetcher) FromURL(ctx context.Context, pageURL string) (string, string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid url: %v", ErrExtraction, err)
	}

	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			f.sleep(time.Duration(1<<attempt) * time.Second)
		}

		doc, err := f.fetch(ctx, pageURL, attempt)
		if err != nil {
			lastErr = err
			f.log.Warn("fetch attempt failed",
				zap.String("url", pageURL),
				zap.Int("attempt", attempt+1),
				zap.String("class", classifyFetchError(err)),
				zap.Error(err))
			continue
		}

		var text string
		if strings.Contains(parsed.Host, "amlegal.com") {
			text = extractAmlegal(doc)
		} else {
			text = extractGeneric(doc)
		}

		locator, err := f.store.Put(contentName(pageURL), []byte(text))
		if err != nil {
			return "", "", err
		}
		f.log.Info("extracted url content",
			zap.String("url", pageURL),
			zap.Int("chars", len(text)),
			zap.String("locator", locator))
		return text, locator, nil
	}

	return "", "", fmt.Errorf("%w: %s after %d attempts: %v",
		ErrExtraction, classifyFetchError(lastErr), maxFetchAttempts, lastErr)
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string, attempt int) (*goquery.Document, error) {
	// Each retry gets a little more time before giving up.
	timeout := 30*time.Second + time.Duration(attempt)*10*time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgents[attempt%len(userAgents)])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// classifyFetchError distinguishes timeouts, connection failures and other
// transport errors for logging and the terminal error message.
func classifyFetchError(err error) string {
	if err == nil {
		return "unknown error"
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		return "request timed out"
	case isConnectionError(err):
		return "connection failed"
	default:
		return "request failed"
	}
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// extractAmlegal pulls titled sections and tabular rows from American Legal
// Publishing pages, falling back to generic extraction when the expected
// layout is absent.
func extractAmlegal(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "American Legal Code"
	}

	main := doc.Find("div.main-content").First()
	if main.Length() == 0 {
		return extractGeneric(doc)
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")

	main.Find("section").Each(func(_ int, section *goquery.Selection) {
		if heading := strings.TrimSpace(section.Find("h1").First().Text()); heading != "" {
			sb.WriteString("\n\n")
			sb.WriteString(heading)
			sb.WriteString("\n")
		}
		section.Find("p, div").Each(func(_ int, el *goquery.Selection) {
			text := strings.TrimSpace(el.Text())
			if text == "" {
				return
			}
			if id, _ := el.Attr("id"); strings.Contains(id, "skiptocontent") {
				return
			}
			sb.WriteString("\n")
			sb.WriteString(text)
		})
	})

	main.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		line := strings.Join(cells, " | ")
		if strings.TrimSpace(line) != "" {
			sb.WriteString("\n")
			sb.WriteString(line)
		}
	})

	content := sb.String()
	if strings.TrimSpace(content) == title {
		return extractGeneric(doc)
	}
	return content
}

// extractGeneric strips non-content elements and returns the remaining
// visible text, one trimmed line per text run, blank runs collapsed.
func extractGeneric(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer").Remove()

	raw := doc.Find("body").Text()
	if strings.TrimSpace(raw) == "" {
		raw = doc.Text()
	}

	raw = blankRuns.ReplaceAllString(raw, "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// contentName derives the stored filename for a URL's extracted text.
func contentName(pageURL string) string {
	return fmt.Sprintf("web_%x.txt", md5.Sum([]byte(pageURL)))
}
