package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyModelHash     = []byte("model_hash")
)

// SchemaInfo stores schema version and the embedding model fingerprint.
type SchemaInfo struct {
	Version   int    `json:"version"`
	ModelHash string `json:"model_hash"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		if hashData := b.Get(keyModelHash); hashData != nil {
			info.ModelHash = string(hashData)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyModelHash, []byte(info.ModelHash))
	})
}

// ComputeModelHash fingerprints the embedding model. Vectors from a
// different fingerprint are not comparable and must not be served.
func ComputeModelHash(model string, dimension int) string {
	data, _ := json.Marshal(struct {
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{model, dimension})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration checks if the cache must be initialised or cleared.
func (s *BoltStore) CheckMigration(model string, dimension int) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("cache created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.ModelHash != "" && info.ModelHash != ComputeModelHash(model, dimension) {
		result.NeedsRebuild = true
		result.Reason = "embedding model changed"
	}

	return result, nil
}

// Prepare runs CheckMigration and applies its outcome: the cache is cleared
// when the model changed and the schema info is brought up to date.
func (s *BoltStore) Prepare(model string, dimension int) (*MigrationResult, error) {
	result, err := s.CheckMigration(model, dimension)
	if err != nil {
		return nil, err
	}
	if result.NeedsRebuild {
		if err := s.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	if result.NeedsRebuild || result.NeedsMigration {
		err = s.SetSchemaInfo(&SchemaInfo{
			Version:   CurrentSchemaVersion,
			ModelHash: ComputeModelHash(model, dimension),
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Clear removes all cached vectors and the manifest.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketDocs} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
