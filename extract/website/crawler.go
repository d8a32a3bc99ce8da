// Package website scrapes a collection's PDS3 volume index page for its
// catalog-object files (mission, instrument, data set, ...) and downloads
// them into the file store's pds3/ directory. It is grounded on
// original_source/extractor/pds_ode_website.py's Crawler and
// PDSCatalogDescription classes, simplified from their full volume
// description cross-referencing down to direct anchor-roster matching.
package website

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/pdssp/pdscrawler/fetch"
	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/pds3"
	"github.com/pdssp/pdscrawler/storage"
)

// volumeExplorerURL mirrors PDSCatalogDescription.DATASET_EXPLORER, the
// ODE DataSetExplorer.aspx template that lists a volume's catalog files.
const volumeExplorerURL = "https://ode.rsl.wustl.edu/%s/DataSetExplorer.aspx?target=%s&instrumenthost=%s&instrumentid=%s&datasetid=%s&volumeid=%s"

// CatalogLink is one anchor on the volume index page recognized as a
// PDS3 catalog-object file.
type CatalogLink struct {
	Kind string
	Name string
	URL  string
}

// Crawler fetches and scrapes volume index pages via a fetch.Client, so
// it inherits the same retry/backoff policy as every other HTTP access
// in the pipeline.
type Crawler struct {
	fetcher *fetch.Client
}

// NewCrawler builds a Crawler backed by fetcher.
func NewCrawler(fetcher *fetch.Client) *Crawler {
	return &Crawler{fetcher: fetcher}
}

// VolumeIndexURL composes the volume-index page URL from a collection's
// descriptor and one of its already-fetched records, following
// PDSCatalogDescription's DATASET_EXPLORER template.
func VolumeIndexURL(cd model.CollectionDescriptor, rec model.Record) string {
	target := strings.ToLower(cd.ODEMetaDB)
	return fmt.Sprintf(volumeExplorerURL, target, target, rec.IHID, rec.IID, rec.DataSetID, rec.PDSVolumeID)
}

// ListCatalogObjects fetches volumeURL and returns the anchors whose text
// matches the PDS3 catalog-object roster: case-insensitive name matching,
// the first occurrence of each catalog kind wins, unknown anchors are
// ignored.
func (c *Crawler) ListCatalogObjects(ctx context.Context, volumeURL string) ([]CatalogLink, error) {
	body, err := c.fetcher.GetBytes(ctx, volumeURL)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching volume index %s", volumeURL)
	}

	anchors, err := parseAnchors(body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing volume index %s", volumeURL)
	}

	seen := make(map[string]bool, 8)
	var links []CatalogLink
	for _, a := range anchors {
		kind, ok := pds3.KindForFilename(a.text)
		if !ok {
			continue
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		links = append(links, CatalogLink{Kind: kind, Name: a.text, URL: a.href})
	}
	return links, nil
}

// Fetch downloads each link's file and writes it into fp's pds3/
// directory, returning the count successfully written.
func (c *Crawler) Fetch(ctx context.Context, links []CatalogLink, fp model.Fingerprint, files *storage.FileStore) (int, error) {
	fetched := 0
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		data, err := c.fetcher.GetBytes(ctx, link.URL)
		if err != nil {
			return fetched, errors.Wrapf(err, "fetching catalog object %s", link.URL)
		}
		if _, err := files.WritePDS3(fp, link.Kind, link.Name, data); err != nil {
			return fetched, errors.Wrapf(err, "writing catalog object %s", link.Name)
		}
		fetched++
	}
	return fetched, nil
}

type anchor struct {
	href string
	text string
}

// parseAnchors extracts every <a href="..."> element's href and text
// content from an HTML document.
func parseAnchors(body []byte) ([]anchor, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var anchors []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href, ok := attr(n, "href")
			if ok {
				anchors = append(anchors, anchor{href: href, text: strings.TrimSpace(textOf(n))})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return anchors, nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textOf(child))
	}
	return sb.String()
}
