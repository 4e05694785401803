package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/prometric-ai/prometric/internal/domain"
)

// maxSourceBytes bounds how much of a remote source is read.
const maxSourceBytes = 10 << 20 // 10 MiB

// SourceResolver produces the raw text for a document from its declared
// source. The returned sourceURL is stored for provenance; manual sources
// have none.
type SourceResolver interface {
	Resolve(ctx context.Context, input IngestInput) (content string, sourceURL string, err error)
}

// ObjectFetcher reads an uploaded file's content from object storage.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, key string) ([]byte, error)
}

// CompositeSourceResolver dispatches on the source type. The file path is
// optional; without an ObjectFetcher, file ingestion fails with a typed error.
type CompositeSourceResolver struct {
	httpClient *http.Client
	fetcher    ObjectFetcher
}

func NewCompositeSourceResolver(fetcher ObjectFetcher) *CompositeSourceResolver {
	return &CompositeSourceResolver{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		fetcher:    fetcher,
	}
}

func (r *CompositeSourceResolver) Resolve(ctx context.Context, input IngestInput) (string, string, error) {
	switch input.SourceType {
	case domain.SourceTypeManual:
		return input.Content, "", nil
	case domain.SourceTypeWebsite:
		content, err := r.fetchWebsite(ctx, input.URL)
		if err != nil {
			return "", "", err
		}
		return content, input.URL, nil
	case domain.SourceTypeFile:
		if r.fetcher == nil {
			return "", "", domain.NewDomainError(domain.ErrCodeExternalService, "file storage is not configured")
		}
		data, err := r.fetcher.FetchObject(ctx, input.ObjectKey)
		if err != nil {
			return "", "", domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "failed to fetch file source", err)
		}
		return string(data), input.ObjectKey, nil
	default:
		return "", "", domain.ErrInvalidSourceType
	}
}

func (r *CompositeSourceResolver) fetchWebsite(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "source URL must be http or https")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "prometric-ingest/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "failed to fetch website source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewDomainError(domain.ErrCodeExternalService,
			fmt.Sprintf("website source returned status %d", resp.StatusCode))
	}

	return extractWebsiteText(io.LimitReader(resp.Body, maxSourceBytes))
}

// extractWebsiteText pulls readable text out of an HTML page, skipping
// script, style and navigation chrome.
func extractWebsiteText(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "failed to parse website source", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var parts []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, blockquote, pre").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})

	// Pages without block structure still get their flat text.
	if len(parts) == 0 {
		return strings.TrimSpace(root.Text()), nil
	}

	return strings.Join(parts, "\n\n"), nil
}
