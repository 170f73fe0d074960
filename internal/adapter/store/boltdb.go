package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.etcd.io/bbolt"
	"ragalert/internal/domain"
)

var (
	bucketVectors  = []byte("vectors")
	bucketDocs     = []byte("docs")
	bucketMeta     = []byte("meta")
	keyManifestGen = []byte("manifest_generated_at")
)

// BoltStore persists computed embeddings, keyed by model and text, and the
// manifest of the last successful ingestion.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketDocs, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// VectorKey identifies the embedding of text under model.
func VectorKey(model, text string) []byte {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum(nil)
}

// GetVectors looks up cached embeddings. The result has one entry per
// text; misses are nil.
func (s *BoltStore) GetVectors(model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, text := range texts {
			data := b.Get(VectorKey(model, text))
			if data == nil {
				continue
			}
			vec, err := decodeVector(data)
			if err != nil {
				return err
			}
			out[i] = vec
		}
		return nil
	})
	return out, err
}

// PutVectors stores embeddings for texts in a single transaction.
func (s *BoltStore) PutVectors(model string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("put vectors: %d texts but %d vectors", len(texts), len(vectors))
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, text := range texts {
			if err := b.Put(VectorKey(model, text), encodeVector(vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountVectors returns the number of cached embeddings.
func (s *BoltStore) CountVectors() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketVectors).Stats().KeyN
		return nil
	})
	return n, err
}

type docMeta struct {
	Seq     int    `json:"seq"`
	Path    string `json:"path"`
	ModTime int64  `json:"mod_time"`
	Pages   int    `json:"pages"`
}

// PutManifest replaces the document manifest with docs, in order.
func (s *BoltStore) PutManifest(docs []domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocs); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketDocs)
		if err != nil {
			return err
		}
		for i, doc := range docs {
			data, err := json.Marshal(docMeta{
				Seq:     i,
				Path:    doc.Path,
				ModTime: doc.ModTime.Unix(),
				Pages:   doc.Pages,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(doc.Name), data); err != nil {
				return err
			}
		}
		stamp, _ := time.Now().UTC().MarshalText()
		return tx.Bucket(bucketMeta).Put(keyManifestGen, stamp)
	})
}

// ListManifest returns the documents of the last successful ingestion in
// ingestion order.
func (s *BoltStore) ListManifest() ([]domain.Document, error) {
	var metas []docMeta
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			metas = append(metas, meta)
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, len(metas))
	placed := make([]bool, len(metas))
	for i, meta := range metas {
		idx := meta.Seq
		if idx < 0 || idx >= len(docs) || placed[idx] {
			return nil, fmt.Errorf("corrupt manifest entry %q", names[i])
		}
		placed[idx] = true
		docs[idx] = domain.Document{
			Name:    names[i],
			Path:    meta.Path,
			ModTime: time.Unix(meta.ModTime, 0),
			Pages:   meta.Pages,
		}
	}
	return docs, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
