// Package checkpoint persists named engine-state blobs in a bolt database.
// Blobs are opaque to us: the interpreter alone understands their format.
// This is client-directed persistence of checkpoints only; sessions
// themselves stay process-lifetime in-memory.
package checkpoint

import (
	"errors"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// ErrNoCheckpoint reports a name with no saved blob for the game.
var ErrNoCheckpoint = errors.New("no such checkpoint")

// Store keeps one bucket per game, keyed by checkpoint name.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes blob under game/name, overwriting any previous checkpoint of
// the same name.
func (s *Store) Save(game, name string, blob []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(game))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(name), blob)
	})
}

// Load returns the blob saved under game/name.
func (s *Store) Load(game, name string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(game))
		if bucket == nil {
			return fmt.Errorf("%w: %s/%s", ErrNoCheckpoint, game, name)
		}
		v := bucket.Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s/%s", ErrNoCheckpoint, game, name)
		}
		blob = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// List returns the sorted checkpoint names saved for a game.
func (s *Store) List(game string) ([]string, error) {
	names := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(game))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
