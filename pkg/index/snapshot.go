package index

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fieldscope/specmatch/internal/models"
)

// snapshotSchemaVersion guards the on-disk layout. Bump on any incompatible
// change; loaders reject other versions instead of guessing.
const snapshotSchemaVersion = 1

var (
	bucketMeta     = []byte("meta")
	bucketManifest = []byte("manifest")
	bucketChunks   = []byte("chunks")

	keySchemaVersion = []byte("schema_version")
	keyDimension     = []byte("dimension")
	keyTotalDocs     = []byte("total_docs")
	keyTotalChunks   = []byte("total_chunks")
)

// snapshotStore persists the whole library into a single bbolt file. Each
// save rewrites the buckets inside one write transaction, so the artifact
// is always either the previous complete state or the new complete state.
type snapshotStore struct {
	db *bbolt.DB
}

func openSnapshotStore(path string) (*snapshotStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	return &snapshotStore{db: db}, nil
}

func (s *snapshotStore) save(snap *snapshot, dimension int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketManifest, bucketChunks} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keySchemaVersion, itob(snapshotSchemaVersion)); err != nil {
			return err
		}
		if err := meta.Put(keyDimension, itob(dimension)); err != nil {
			return err
		}
		if err := meta.Put(keyTotalDocs, itob(len(snap.docs))); err != nil {
			return err
		}
		if err := meta.Put(keyTotalChunks, itob(len(snap.chunks))); err != nil {
			return err
		}

		// Keys are zero-padded ordinals so bbolt's key order preserves
		// insertion order on load.
		manifest := tx.Bucket(bucketManifest)
		for i, doc := range snap.docs {
			data, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			if err := manifest.Put(ordinalKey(i), data); err != nil {
				return err
			}
		}

		chunks := tx.Bucket(bucketChunks)
		for i, chunk := range snap.chunks {
			data, err := json.Marshal(chunk)
			if err != nil {
				return err
			}
			if err := chunks.Put(ordinalKey(i), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// load restores the snapshot, validating schema version, counts and vector
// dimensions. Returns (nil, nil) for a fresh artifact with no state yet.
func (s *snapshotStore) load(dimension int) (*snapshot, error) {
	snap := emptySnapshot()
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}
		found = true

		version, err := btoi(meta.Get(keySchemaVersion))
		if err != nil {
			return fmt.Errorf("%w: unreadable schema version", ErrCorruptSnapshot)
		}
		if version != snapshotSchemaVersion {
			return fmt.Errorf("%w: schema version %d, expected %d",
				ErrCorruptSnapshot, version, snapshotSchemaVersion)
		}
		storedDim, err := btoi(meta.Get(keyDimension))
		if err != nil {
			return fmt.Errorf("%w: unreadable dimension", ErrCorruptSnapshot)
		}
		if storedDim != dimension {
			return fmt.Errorf("%w: snapshot dimension %d, embedder dimension %d",
				ErrDimensionMismatch, storedDim, dimension)
		}
		wantDocs, err := btoi(meta.Get(keyTotalDocs))
		if err != nil {
			return fmt.Errorf("%w: unreadable doc count", ErrCorruptSnapshot)
		}
		wantChunks, err := btoi(meta.Get(keyTotalChunks))
		if err != nil {
			return fmt.Errorf("%w: unreadable chunk count", ErrCorruptSnapshot)
		}

		manifest := tx.Bucket(bucketManifest)
		chunks := tx.Bucket(bucketChunks)
		if manifest == nil || chunks == nil {
			return fmt.Errorf("%w: missing bucket", ErrCorruptSnapshot)
		}

		if err := manifest.ForEach(func(_, v []byte) error {
			var doc models.SpecDocument
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("%w: unreadable document record", ErrCorruptSnapshot)
			}
			snap.byName[doc.Filename] = len(snap.docs)
			snap.byHash[doc.ContentHash] = doc.Filename
			snap.docs = append(snap.docs, doc)
			return nil
		}); err != nil {
			return err
		}

		if err := chunks.ForEach(func(_, v []byte) error {
			var chunk models.SpecChunk
			if err := json.Unmarshal(v, &chunk); err != nil {
				return fmt.Errorf("%w: unreadable chunk record", ErrCorruptSnapshot)
			}
			if len(chunk.Embedding) != dimension {
				return fmt.Errorf("%w: chunk %s has dimension %d",
					ErrCorruptSnapshot, chunk.ID, len(chunk.Embedding))
			}
			if _, known := snap.byName[chunk.SourceDoc]; !known {
				return fmt.Errorf("%w: orphan chunk %s", ErrCorruptSnapshot, chunk.ID)
			}
			snap.chunks = append(snap.chunks, chunk)
			return nil
		}); err != nil {
			return err
		}

		if len(snap.docs) != wantDocs || len(snap.chunks) != wantChunks {
			return fmt.Errorf("%w: counts do not match manifest (%d/%d docs, %d/%d chunks)",
				ErrCorruptSnapshot, len(snap.docs), wantDocs, len(snap.chunks), wantChunks)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return snap, nil
}

func (s *snapshotStore) close() error {
	return s.db.Close()
}

func ordinalKey(i int) []byte {
	return []byte(fmt.Sprintf("%010d", i))
}

func itob(i int) []byte {
	return []byte(strconv.Itoa(i))
}

func btoi(b []byte) (int, error) {
	if b == nil {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.Atoi(string(b))
}
