package pypi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Simple API content types.
const (
	ContentTypeJSON   = "application/vnd.pypi.simple.v1+json"
	ContentTypeHTML   = "application/vnd.pypi.simple.v1+html"
	ContentTypeLegacy = "text/html"
)

// acceptHeader prefers PEP 691 JSON and falls back to HTML.
const acceptHeader = ContentTypeJSON + ", " + ContentTypeHTML + ";q=0.2, " + ContentTypeLegacy + ";q=0.01"

// ProjectFile is one entry of a project page.
type ProjectFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// projectPage is the PEP 691 project detail document.
type projectPage struct {
	Meta struct {
		APIVersion string `json:"api-version"`
	} `json:"meta"`
	Name  string        `json:"name"`
	Files []ProjectFile `json:"files"`
}

// UnsupportedContentTypeError is returned for project pages that are neither
// PEP 691 JSON nor HTML.
type UnsupportedContentTypeError struct {
	ContentType string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content type %q", e.ContentType)
}

// ParseProjectPage extracts the file list from a project page body of the
// given content type.
func ParseProjectPage(body []byte, contentType string) ([]ProjectFile, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, &UnsupportedContentTypeError{ContentType: contentType}
	}
	switch mediaType {
	case ContentTypeJSON:
		var page projectPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode project page: %w", err)
		}
		return page.Files, nil
	case ContentTypeHTML, ContentTypeLegacy:
		return parseHTMLPage(body)
	default:
		return nil, &UnsupportedContentTypeError{ContentType: contentType}
	}
}

// parseHTMLPage reads the anchors of a PEP 503 page. The anchor text is the
// filename and the href, fragment included, is the URL.
func parseHTMLPage(body []byte) ([]ProjectFile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse project page: %w", err)
	}
	var files []ProjectFile
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}
		files = append(files, ProjectFile{Filename: name, URL: href})
	})
	return files, nil
}
