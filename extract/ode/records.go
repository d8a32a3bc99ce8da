package ode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/pdssp/pdscrawler/fetch"
	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/storage"
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 1000

// Records enumerates and fetches the paginated record listing for a
// collection, persisting each page verbatim into the file store.
type Records struct {
	endpoint string
	fetcher  *fetch.Client
	files    *storage.FileStore
	pageSize int
	pageIdx  *storage.PageIndex
}

// NewRecords builds a Records extractor writing pages through files via
// fetcher.
func NewRecords(fetcher *fetch.Client, files *storage.FileStore) *Records {
	return &Records{endpoint: ServiceEndpoint, fetcher: fetcher, files: files, pageSize: DefaultPageSize}
}

// WithPageSize overrides the default page size (mainly for tests).
func (r *Records) WithPageSize(n int) *Records {
	r.pageSize = n
	return r
}

// WithPageIndex attaches a side index that records each written page's
// size and checksum, so check_extract can compare each page file's
// checksum against the one recorded when it was written.
func (r *Records) WithPageIndex(idx *storage.PageIndex) *Records {
	r.pageIdx = idx
	return r
}

// WithEndpoint overrides the records endpoint, for tests and for pointing
// at an ODE mirror other than the default live service.
func (r *Records) WithEndpoint(endpoint string) *Records {
	r.endpoint = endpoint
	return r
}

// PageURL builds the records endpoint URL for one page of a collection,
// using the upstream query parameter names (ihid/iid/pt/offset/limit).
func (r *Records) PageURL(cd model.CollectionDescriptor, pageIndex int) string {
	offset := pageIndex*r.pageSize + 1
	params := url.Values{
		"query":   {"product"},
		"target":  {cd.ODEMetaDB},
		"results": {"copmf"},
		"ihid":    {cd.IHID},
		"iid":     {cd.IID},
		"pt":      {cd.PT},
		"offset":  {strconv.Itoa(offset)},
		"limit":   {strconv.Itoa(r.pageSize)},
		"output":  {"json"},
	}
	return r.endpoint + params.Encode()
}

// ExtractRecords computes the page count from the descriptor
// (ceil(NumberProducts / pageSize)), enumerates missing page indices,
// and fetches each one in turn. pageLimit, when > 0, bounds extraction
// to the first pageLimit pages ("sample" mode); 0 means no limit.
//
// Pages are requested in increasing index order but that's only a
// scheduling convenience -- completion order doesn't matter for
// correctness, since each page is written independently and atomically.
func (r *Records) ExtractRecords(ctx context.Context, fp model.Fingerprint, cd model.CollectionDescriptor, pageLimit int) (fetched int, err error) {
	totalPages := cd.PageCount(r.pageSize)
	if pageLimit > 0 && totalPages > pageLimit {
		totalPages = pageLimit
	}
	missing := r.files.ListMissingPages(fp, totalPages)

	for _, pageIndex := range missing {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		body, err := r.fetchPage(ctx, cd, pageIndex)
		if err != nil {
			return fetched, errors.Wrapf(err, "fetching page %d of %s", pageIndex, fp)
		}
		if page, derr := model.DecodeRecordPage(body); derr == nil && !page.Complete() {
			return fetched, errors.Errorf("page %d of %s is incomplete: header count %d, %d records", pageIndex, fp, page.Count, len(page.Records))
		}
		if err := r.files.WritePage(fp, pageIndex, body); err != nil {
			return fetched, errors.Wrapf(err, "writing page %d of %s", pageIndex, fp)
		}
		if r.pageIdx != nil {
			sum := sha256.Sum256(body)
			rec := storage.PageRecord{Size: int64(len(body)), Checksum: hex.EncodeToString(sum[:])}
			if err := r.pageIdx.Put(fp, pageIndex, rec); err != nil {
				return fetched, errors.Wrapf(err, "indexing page %d of %s", pageIndex, fp)
			}
		}
		fetched++
	}
	return fetched, nil
}

// fetchPage performs a GET with fetch.Client's retry/backoff policy,
// bypassing its file-based resume semantics since the caller already
// knows which pages are missing via the file store -- the page's own
// JSON bytes are the payload, not a file path to land at.
func (r *Records) fetchPage(ctx context.Context, cd model.CollectionDescriptor, pageIndex int) ([]byte, error) {
	return r.fetcher.GetBytes(ctx, r.PageURL(cd, pageIndex))
}
