// Package etl coordinates the crawler's five phases -- discover,
// extract_records, extract_pds3, transform_pds3, transform_records --
// over a selection of collections. It holds no state of its own; every
// phase's idempotence comes from the storage layer underneath it. The
// orchestration loop is grounded on ingest.go's Ingester.Run: a bounded
// pool of goroutines draining a shared work queue.
package etl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pdssp/pdscrawler/extract/ode"
	"github.com/pdssp/pdscrawler/extract/website"
	"github.com/pdssp/pdscrawler/fetch"
	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/stac"
	"github.com/pdssp/pdscrawler/storage"
)

// Phase names one of the five pipeline stages, run in this fixed order.
type Phase string

const (
	PhaseDiscover         Phase = "discover"
	PhaseExtractRecords   Phase = "extract_records"
	PhaseExtractPDS3      Phase = "extract_pds3"
	PhaseTransformPDS3    Phase = "transform_pds3"
	PhaseTransformRecords Phase = "transform_records"
)

// Selection is the predicate a phase runs collections through: all
// collections, a single one by dataset id, or a planet-scoped subset.
// Sample, when > 0, bounds extract_records to its first N pages.
type Selection struct {
	Planet    string
	DataSetID string
	Sample    int
}

func (s Selection) matches(cd model.CollectionDescriptor) bool {
	if s.DataSetID != "" && !strings.EqualFold(cd.DataSetID, s.DataSetID) {
		return false
	}
	if s.Planet != "" && !strings.EqualFold(cd.ODEMetaDB, s.Planet) {
		return false
	}
	return true
}

// CollectionResult is one collection's outcome within a phase run.
type CollectionResult struct {
	DataSetID   string `json:"dataset_id"`
	Fingerprint string `json:"fingerprint"`
	Count       int    `json:"count"`
	Err         string `json:"error,omitempty"`
}

// Report is the machine-readable per-phase summary written at the root
// of the storage tree after every Run.
type Report struct {
	RunID      string             `json:"run_id"`
	Phase      Phase              `json:"phase"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Results    []CollectionResult `json:"results"`
}

// Failures returns the subset of Results that recorded an error.
func (r *Report) Failures() []CollectionResult {
	var out []CollectionResult
	for _, res := range r.Results {
		if res.Err != "" {
			out = append(out, res)
		}
	}
	return out
}

// Driver wires the registry, file store, and per-phase workers together.
// Concurrency bounds how many collections are processed in parallel;
// each collection's own I/O (HTTP fetches) is further bounded by the
// fetch.Client it was built with.
type Driver struct {
	Registry    storage.Registry
	Files       *storage.FileStore
	Discoverer  *ode.Registry
	Records     *ode.Records
	Website     *website.Crawler
	STAC        *stac.Builder
	Concurrency int
}

// NewDriver builds a Driver with the standard wiring: the ODE registry
// and records extractors, the website crawler, and the STAC builder all
// sharing the same registry and file store.
func NewDriver(files *storage.FileStore, registry storage.Registry, fetcher *fetch.Client, pageIdx *storage.PageIndex) *Driver {
	records := ode.NewRecords(fetcher, files)
	if pageIdx != nil {
		records = records.WithPageIndex(pageIdx)
	}
	return &Driver{
		Registry:    registry,
		Files:       files,
		Discoverer:  ode.NewRegistry(registry, fetcher),
		Records:     records,
		Website:     website.NewCrawler(fetcher),
		STAC:        stac.NewBuilder(files, registry),
		Concurrency: 4,
	}
}

// Run executes one phase over the collections sel selects, returning the
// phase report. Per-collection errors are captured in the report and
// don't stop the run; only an unknown phase, a discovery failure, or a
// failure to list collections or persist the report itself is returned
// as err.
func (d *Driver) Run(ctx context.Context, phase Phase, sel Selection) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), Phase: phase, StartedAt: time.Now()}

	if phase == PhaseDiscover {
		return d.runDiscover(ctx, sel, report)
	}

	cds, err := d.Registry.List(sel.matches)
	if err != nil {
		return nil, errors.Wrap(err, "listing collections")
	}

	worker, err := d.workerFor(phase)
	if err != nil {
		return nil, err
	}

	report.Results = d.runPool(ctx, cds, func(cd model.CollectionDescriptor) CollectionResult {
		return worker(ctx, cd, sel)
	})
	report.FinishedAt = time.Now()
	if err := d.persistReport(report); err != nil {
		return report, err
	}
	return report, nil
}

func (d *Driver) workerFor(phase Phase) (func(context.Context, model.CollectionDescriptor, Selection) CollectionResult, error) {
	switch phase {
	case PhaseExtractRecords:
		return d.extractRecordsOne, nil
	case PhaseExtractPDS3:
		return d.extractPDS3One, nil
	case PhaseTransformPDS3:
		return d.transformPDS3One, nil
	case PhaseTransformRecords:
		return d.transformRecordsOne, nil
	default:
		return nil, errors.Errorf("unknown phase %q", phase)
	}
}

func (d *Driver) runDiscover(ctx context.Context, sel Selection, report *Report) (*Report, error) {
	_, stats, err := d.Discoverer.Discover(ctx, sel.Planet)
	if err != nil {
		return nil, errors.Wrap(err, "discovering collections")
	}
	report.Results = []CollectionResult{{
		DataSetID: "*",
		Count:     stats.Kept,
	}}
	report.FinishedAt = time.Now()
	if err := d.persistReport(report); err != nil {
		return report, err
	}
	return report, nil
}

// runPool fans cds out across d.Concurrency goroutines draining a shared
// work channel, the same shape as ingest.go's Ingester.Run.
func (d *Driver) runPool(ctx context.Context, cds []model.CollectionDescriptor, fn func(model.CollectionDescriptor) CollectionResult) []CollectionResult {
	work := make(chan model.CollectionDescriptor, len(cds))
	for _, cd := range cds {
		work <- cd
	}
	close(work)

	n := d.Concurrency
	if n <= 0 {
		n = 1
	}

	var mu sync.Mutex
	results := make([]CollectionResult, 0, len(cds))
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cd := range work {
				var res CollectionResult
				if err := ctx.Err(); err != nil {
					res = CollectionResult{DataSetID: cd.DataSetID, Err: err.Error()}
				} else {
					res = fn(cd)
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].DataSetID < results[j].DataSetID })
	return results
}

func (d *Driver) extractRecordsOne(ctx context.Context, cd model.CollectionDescriptor, sel Selection) CollectionResult {
	fp := cd.Fingerprint()
	n, err := d.Records.ExtractRecords(ctx, fp, cd, sel.Sample)
	res := CollectionResult{DataSetID: cd.DataSetID, Fingerprint: fp.String(), Count: n}
	if err != nil {
		res.Err = err.Error()
		d.writeCollectionReport(fp, "extract_records", err)
	}
	return res
}

func (d *Driver) extractPDS3One(ctx context.Context, cd model.CollectionDescriptor, _ Selection) CollectionResult {
	fp := cd.Fingerprint()
	res := CollectionResult{DataSetID: cd.DataSetID, Fingerprint: fp.String()}

	rec, err := d.firstCachedRecord(fp)
	if err != nil {
		res.Err = err.Error()
		d.writeCollectionReport(fp, "extract_pds3", err)
		return res
	}

	volumeURL := website.VolumeIndexURL(cd, rec)
	links, err := d.Website.ListCatalogObjects(ctx, volumeURL)
	if err != nil {
		res.Err = err.Error()
		d.writeCollectionReport(fp, "extract_pds3", err)
		return res
	}

	n, err := d.Website.Fetch(ctx, links, fp, d.Files)
	res.Count = n
	if err != nil {
		res.Err = err.Error()
		d.writeCollectionReport(fp, "extract_pds3", err)
	}
	return res
}

func (d *Driver) transformPDS3One(ctx context.Context, cd model.CollectionDescriptor, _ Selection) CollectionResult {
	fp := cd.Fingerprint()
	n, err := d.STAC.TransformPDS3(ctx, fp)
	res := CollectionResult{DataSetID: cd.DataSetID, Fingerprint: fp.String(), Count: n}
	if err != nil {
		res.Err = err.Error()
		d.writeCollectionReport(fp, "transform_pds3", err)
	}
	return res
}

func (d *Driver) transformRecordsOne(ctx context.Context, cd model.CollectionDescriptor, _ Selection) CollectionResult {
	fp := cd.Fingerprint()
	n, err := d.STAC.TransformRecords(ctx, fp)
	res := CollectionResult{DataSetID: cd.DataSetID, Fingerprint: fp.String(), Count: n}
	if err != nil {
		res.Err = err.Error()
		d.writeCollectionReport(fp, "transform_records", err)
	}
	return res
}

// firstCachedRecord returns the first record of the lowest-numbered page
// already cached for fp, which extract_pds3 needs to learn the volume
// id its volume-index URL is built from. It fails unless extract_records
// has already cached at least one page for fp; Run does not check the
// order in which phases are invoked.
func (d *Driver) firstCachedRecord(fp model.Fingerprint) (model.Record, error) {
	pages, err := d.Files.ListPages(fp)
	if err != nil {
		return model.Record{}, errors.Wrap(err, "listing cached pages")
	}
	if len(pages) == 0 {
		return model.Record{}, errors.Errorf("no record pages cached for %s, run extract_records first", fp)
	}
	data, err := d.Files.ReadPage(fp, pages[0])
	if err != nil {
		return model.Record{}, err
	}
	page, err := model.DecodeRecordPage(data)
	if err != nil {
		return model.Record{}, err
	}
	if len(page.Records) == 0 {
		return model.Record{}, errors.Errorf("page %d of %s has no records", pages[0], fp)
	}
	return page.Records[0], nil
}

// writeCollectionReport appends a human-readable failure line to the
// collection's stac/report.txt. Best-effort: a failure to write the
// report must not mask the underlying error, which the caller already
// carries in the phase Report.
func (d *Driver) writeCollectionReport(fp model.Fingerprint, category string, err error) {
	if err == nil {
		return
	}
	path := filepath.Join(d.Files.STACDir(fp), "report.txt")
	if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
		return
	}
	f, openErr := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if openErr != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] %s: %s\n", time.Now().Format(time.RFC3339), category, err.Error())
}

// persistReport writes report as the machine-readable per-phase summary
// at the storage tree's root, overwriting any prior run of the same
// phase. RunID lets a reader tell which invocation produced it even
// though the filename itself is stable.
func (d *Driver) persistReport(report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding phase report")
	}
	path := filepath.Join(d.Files.RootDir(), fmt.Sprintf("report_%s.json", report.Phase))
	return storage.AtomicWriteFile(path, data)
}

// CheckResult is one collection's resumability status, as reported by
// check_extract: missing record pages and the number of PDS3 catalog
// files already fetched.
type CheckResult struct {
	DataSetID     string `json:"dataset_id"`
	Fingerprint   string `json:"fingerprint"`
	MissingPages  []int  `json:"missing_pages,omitempty"`
	PDS3FileCount int    `json:"pds3_file_count"`
	ChecksumOK    bool   `json:"checksum_ok"`
}

// CheckExtract reports, for every collection matched by sel, which
// record pages are missing relative to the descriptor's declared
// product count and how many PDS3 catalog files have been fetched. It
// never fetches anything; it only inspects what's already on disk.
func (d *Driver) CheckExtract(sel Selection, pageSize int, pageIdx *storage.PageIndex) ([]CheckResult, error) {
	cds, err := d.Registry.List(sel.matches)
	if err != nil {
		return nil, errors.Wrap(err, "listing collections")
	}

	out := make([]CheckResult, 0, len(cds))
	for _, cd := range cds {
		fp := cd.Fingerprint()
		totalPages := cd.PageCount(pageSize)
		missing := d.Files.ListMissingPages(fp, totalPages)

		pds3Files, err := d.Files.ListPDS3(fp)
		if err != nil {
			return nil, errors.Wrapf(err, "listing pds3 files for %s", fp)
		}

		checksumOK := true
		if pageIdx != nil {
			present, err := d.Files.ListPages(fp)
			if err != nil {
				return nil, errors.Wrapf(err, "listing pages for %s", fp)
			}
			for _, pageNum := range present {
				data, err := d.Files.ReadPage(fp, pageNum)
				if err != nil {
					return nil, err
				}
				rec, found, err := pageIdx.Get(fp, pageNum)
				if err != nil {
					return nil, err
				}
				if !found {
					continue
				}
				sum := sha256.Sum256(data)
				if hex.EncodeToString(sum[:]) != rec.Checksum {
					checksumOK = false
				}
			}
		}

		out = append(out, CheckResult{
			DataSetID:     cd.DataSetID,
			Fingerprint:   fp.String(),
			MissingPages:  missing,
			PDS3FileCount: len(pds3Files),
			ChecksumOK:    checksumOK,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DataSetID < out[j].DataSetID })
	return out, nil
}
