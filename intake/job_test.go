package intake

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const postingHTML = `<!doctype html>
<html>
<head>
  <title>Careers | Acme</title>
  <meta property="og:site_name" content="Acme Careers">
  <meta name="description" content="Join Acme.">
  <script>var title = "ignore me";</script>
</head>
<body>
  <h1 class="top-job-title">Senior Product Manager</h1>
  <span data-testid="company-name">Acme Inc</span>
  <div id="job-description">
    <p>You will own the roadmap for our payments platform and work closely with engineering.</p>
    <p>Five or more years of product experience required.</p>
  </div>
</body>
</html>`

func TestParseJob(t *testing.T) {
	job, err := ParseJob(strings.NewReader(postingHTML))
	if err != nil {
		t.Fatalf("ParseJob: %v", err)
	}
	if job.Title != "Senior Product Manager" {
		t.Errorf("Title = %q", job.Title)
	}
	if job.Company != "Acme Inc" {
		t.Errorf("Company = %q", job.Company)
	}
	if !strings.HasPrefix(job.Description, "You will own the roadmap") {
		t.Errorf("Description = %q", job.Description)
	}
	if strings.Contains(job.Description, "ignore me") {
		t.Error("script text leaked into description")
	}
	if job.Fallback {
		t.Error("parsed posting flagged as fallback")
	}
}

func TestParseJobPartial(t *testing.T) {
	tests := []struct {
		name        string
		html        string
		wantTitle   string
		wantCompany string
	}{
		{
			name:        "title tag only",
			html:        `<html><head><title>Backend Engineer</title></head><body></body></html>`,
			wantTitle:   "Backend Engineer",
			wantCompany: FallbackCompany,
		},
		{
			name:        "open graph",
			html:        `<html><head><meta property="og:title" content="Data Scientist"><meta property="og:site_name" content="Globex"></head></html>`,
			wantTitle:   "Data Scientist",
			wantCompany: "Globex",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := ParseJob(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("ParseJob: %v", err)
			}
			if job.Title != tt.wantTitle || job.Company != tt.wantCompany {
				t.Errorf("got %q at %q, want %q at %q", job.Title, job.Company, tt.wantTitle, tt.wantCompany)
			}
			if job.Description != FallbackDescription {
				t.Errorf("Description = %q", job.Description)
			}
		})
	}
}

func TestParseJobEmptyPage(t *testing.T) {
	job, err := ParseJob(strings.NewReader(`<html><body></body></html>`))
	if err != nil {
		t.Fatalf("ParseJob: %v", err)
	}
	if !job.Fallback || job.Title != FallbackTitle {
		t.Errorf("expected fallback posting, got %+v", job)
	}
}

func TestParseJobTruncatesDescription(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	job, err := ParseJob(strings.NewReader(`<html><body><div class="description">` + long + `</div></body></html>`))
	if err != nil {
		t.Fatalf("ParseJob: %v", err)
	}
	if n := len([]rune(job.Description)); n != maxDescription {
		t.Errorf("description length = %d, want %d", n, maxDescription)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing user agent")
		}
		switch r.URL.Path {
		case "/jobs/1":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(postingHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(WithHTTPClient(srv.Client()))

	t.Run("ok", func(t *testing.T) {
		job, err := f.Fetch(context.Background(), srv.URL+"/jobs/1")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if job.Title != "Senior Product Manager" || job.SourceURL != srv.URL+"/jobs/1" {
			t.Errorf("unexpected job %+v", job)
		}
	})

	t.Run("not found", func(t *testing.T) {
		job, err := f.Fetch(context.Background(), srv.URL+"/missing")
		if err == nil {
			t.Fatal("expected error")
		}
		if !job.Fallback || job.Company != FallbackCompany {
			t.Errorf("expected fallback, got %+v", job)
		}
	})
}

func TestFetchInvalidURL(t *testing.T) {
	f := NewFetcher()
	for _, raw := range []string{"", "not a url", "ftp://example.com/job", "/relative/path"} {
		job, err := f.Fetch(context.Background(), raw)
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Fetch(%q) err = %v, want ErrInvalidURL", raw, err)
		}
		if !job.Fallback {
			t.Errorf("Fetch(%q) did not return fallback", raw)
		}
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher(WithHTTPClient(srv.Client()), WithFetchTimeout(50*time.Millisecond))
	job, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if !job.Fallback {
		t.Error("expected fallback posting")
	}
}
