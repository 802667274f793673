// File: internal/store/badger.go
// Description: Badger-backed session store. One JSON document per session,
// keyed by id. A single orchestrator goroutine owns writes for its session,
// so plain last-write-wins set operations are sufficient.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

const sessionPrefix = "session/"

// BadgerStore implements schemas.SessionStore on a local badger database.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerStore opens (or creates) the database at path.
func NewBadgerStore(path string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open session store at %s: %w", path, err)
	}
	return &BadgerStore{
		db:     db,
		logger: logger.Named("store"),
	}, nil
}

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

// Create persists a new session document. An existing id is an error.
func (s *BadgerStore) Create(ctx context.Context, sess *schemas.Session) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(sess.ID)); err == nil {
			return fmt.Errorf("session %s already exists", sess.ID)
		}
		return s.write(txn, sess)
	})
}

// Update overwrites the session document unconditionally.
func (s *BadgerStore) Update(ctx context.Context, sess *schemas.Session) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.write(txn, sess)
	})
}

func (s *BadgerStore) write(txn *badger.Txn, sess *schemas.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("could not marshal session %s: %w", sess.ID, err)
	}
	return txn.Set(sessionKey(sess.ID), raw)
}

// Get loads a session document by id.
func (s *BadgerStore) Get(ctx context.Context, id string) (*schemas.Session, error) {
	var sess schemas.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return schemas.ErrSessionNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
