package storage

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/pdssp/pdscrawler/model"
)

var pageBucket = []byte("pages")

// PageRecord is what PageIndex stores per fetched page: its size and
// checksum as they were when the page was written.
type PageRecord struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// PageIndex is a boltdb/bolt-backed side index of page checksums and
// sizes, keyed by "<fingerprint>/<page index>". Record extraction writes
// an entry per page, and check_extract re-hashes each page file and
// compares it with the entry; resuming an extraction does not consult
// it, since the missing pages are found from the file store.
type PageIndex struct {
	db *bolt.DB
}

// OpenPageIndex opens (creating if necessary) the bolt database at path.
func OpenPageIndex(path string) (*PageIndex, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening page index %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pageBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating pages bucket")
	}
	return &PageIndex{db: db}, nil
}

func (p *PageIndex) Close() error {
	return p.db.Close()
}

func pageKey(fp model.Fingerprint, pageIndex int) []byte {
	key := make([]byte, 0, len(fp.String())+9)
	key = append(key, fp.String()...)
	key = append(key, '/')
	idx := make([]byte, 8)
	binary.BigEndian.PutUint64(idx, uint64(pageIndex))
	return append(key, idx...)
}

// Put records a page's size and checksum.
func (p *PageIndex) Put(fp model.Fingerprint, pageIndex int, rec PageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshaling page record")
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pageBucket).Put(pageKey(fp, pageIndex), data)
	})
}

// Get returns the recorded size/checksum for a page, if any.
func (p *PageIndex) Get(fp model.Fingerprint, pageIndex int) (PageRecord, bool, error) {
	var rec PageRecord
	var found bool
	err := p.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(pageBucket).Get(pageKey(fp, pageIndex))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return PageRecord{}, false, errors.Wrap(err, "reading page record")
	}
	return rec, found, nil
}

// Delete removes a page's recorded checksum. FileStore.Reset does not
// call it, so removing page files leaves their entries in the index.
func (p *PageIndex) Delete(fp model.Fingerprint, pageIndex int) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pageBucket).Delete(pageKey(fp, pageIndex))
	})
}
