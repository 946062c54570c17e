package wheelhouse

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ListingTitle is the <title> of every generated listing page.
const ListingTitle = "Links for all packages"

// WriteListing renders a PEP 503 listing page with one link per entry:
//
//	<!DOCTYPE html><html><head><title>Links for all packages</title></head><a href="F">F</a><br/>...</html>
//
// The page has no body element and no whitespace between tags.
func WriteListing(w io.Writer, links []string) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	title := element(atom.Title)
	title.AppendChild(&html.Node{Type: html.TextNode, Data: ListingTitle})
	head.AppendChild(title)
	root.AppendChild(head)

	for _, link := range links {
		a := element(atom.A)
		a.Attr = []html.Attribute{{Key: "href", Val: link}}
		a.AppendChild(&html.Node{Type: html.TextNode, Data: link})
		root.AppendChild(a)
		root.AppendChild(element(atom.Br))
	}
	return html.Render(w, doc)
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

// writeListingFile writes the listing for links to path, creating parent
// directories as needed.
func writeListingFile(path string, links []string) error {
	var buf bytes.Buffer
	if err := WriteListing(&buf, links); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
