// Package intake turns a job posting URL and a pasted resume into the
// context a mock interview starts from. Every extractor degrades to
// fallback values instead of failing the request.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Fallback values used when a posting cannot be fetched or parsed.
const (
	FallbackTitle       = "Position from job posting"
	FallbackCompany     = "Company"
	FallbackDescription = "Job description not available. Please fill in the details manually."
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBody      = 2 << 20
	maxDescription      = 2000
	userAgent           = "Mozilla/5.0 (compatible; mockprep-intake/1.0)"
)

// Job is the subset of a posting the interviewer prompt needs.
type Job struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url,omitempty"`
	Fallback    bool   `json:"fallback"`
}

// FallbackJob returns the placeholder posting for sourceURL.
func FallbackJob(sourceURL string) Job {
	return Job{
		Title:       FallbackTitle,
		Company:     FallbackCompany,
		Description: FallbackDescription,
		SourceURL:   sourceURL,
		Fallback:    true,
	}
}

// Fetcher downloads and parses job postings.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	maxBody int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithFetchTimeout bounds a single fetch.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewFetcher returns a Fetcher with a 15s timeout and a 2 MiB body cap.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:  http.DefaultClient,
		timeout: defaultFetchTimeout,
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ErrInvalidURL is returned for links that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("intake: invalid job url")

// Fetch downloads rawURL and extracts the posting. On any failure it still
// returns the fallback posting, together with the error for logging.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Job, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return FallbackJob(rawURL), ErrInvalidURL
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FallbackJob(rawURL), err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return FallbackJob(rawURL), fmt.Errorf("intake: fetch job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FallbackJob(rawURL), fmt.Errorf("intake: fetch job: status %d", resp.StatusCode)
	}

	job, err := ParseJob(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return FallbackJob(rawURL), err
	}
	job.SourceURL = u.String()
	return job, nil
}

// ParseJob extracts title, company and description from an HTML posting.
// Missing fields are filled with fallback values.
func ParseJob(r io.Reader) (Job, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return FallbackJob(""), fmt.Errorf("intake: parse job: %w", err)
	}

	p := &page{}
	p.walk(doc)

	job := Job{
		Title:       firstNonEmpty(p.jobTitle, p.h1, p.ogTitle, p.title),
		Company:     firstNonEmpty(p.company, p.siteName),
		Description: firstNonEmpty(p.description, p.paragraphs(), p.metaDescription),
	}
	if job.Title == "" && job.Company == "" && job.Description == "" {
		return FallbackJob(""), nil
	}
	if job.Title == "" {
		job.Title = FallbackTitle
	}
	if job.Company == "" {
		job.Company = FallbackCompany
	}
	if job.Description == "" {
		job.Description = FallbackDescription
	}
	job.Description = truncate(job.Description, maxDescription)
	return job, nil
}

// page collects candidate values while walking the document once.
type page struct {
	title, h1, jobTitle string
	ogTitle, siteName   string
	company             string
	description         string
	metaDescription     string
	paras               []string
}

func (p *page) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		case atom.Title:
			setOnce(&p.title, textOf(n))
		case atom.Meta:
			p.meta(n)
		case atom.H1:
			setOnce(&p.h1, textOf(n))
		case atom.P:
			if t := textOf(n); len(t) > 20 && len(p.paras) < 10 {
				p.paras = append(p.paras, t)
			}
		}

		marker := strings.ToLower(attr(n, "class") + " " + attr(n, "id") + " " + attr(n, "data-test") + " " + attr(n, "data-testid"))
		switch {
		case strings.Contains(marker, "job-title") || strings.Contains(marker, "jobtitle"):
			setOnce(&p.jobTitle, textOf(n))
		case strings.Contains(marker, "company") || strings.Contains(marker, "employer") || strings.Contains(marker, "org-name"):
			if t := textOf(n); len(t) > 1 && len(t) < 120 {
				setOnce(&p.company, t)
			}
		case strings.Contains(marker, "description"):
			if t := textOf(n); len(t) > 50 {
				setOnce(&p.description, t)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func (p *page) meta(n *html.Node) {
	key := strings.ToLower(firstNonEmpty(attr(n, "property"), attr(n, "name")))
	content := clean(attr(n, "content"))
	switch key {
	case "og:title":
		setOnce(&p.ogTitle, content)
	case "og:site_name":
		setOnce(&p.siteName, content)
	case "description", "og:description":
		setOnce(&p.metaDescription, content)
	}
}

func (p *page) paragraphs() string {
	return strings.Join(p.paras, " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return clean(b.String())
}

var spaces = regexp.MustCompile(`\s+`)

func clean(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func setOnce(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
