package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/inamate/sketchboard/internal/element"
)

var (
	scenesBucket = []byte("scenes")
	usersBucket  = []byte("users")
	emailsBucket = []byte("emails")
)

// BoltStore keeps one snapshot per scene in a local BoltDB file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if needed) the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{scenesBucket, usersBucket, emailsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
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

func (s *BoltStore) LoadScene(ctx context.Context, sceneID string) ([]element.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(scenesBucket).Get([]byte(sceneID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return nil, err
	}
	return snap.Elements, nil
}

func (s *BoltStore) SaveScene(ctx context.Context, sceneID string, els []element.Element) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if els == nil {
		els = []element.Element{}
	}

	var version int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(scenesBucket)

		var prev snapshot
		if data := b.Get([]byte(sceneID)); data != nil {
			if err := json.Unmarshal(data, &prev); err != nil {
				return fmt.Errorf("unmarshal snapshot: %w", err)
			}
		}
		version = prev.Version + 1

		data, err := json.Marshal(snapshot{Version: version, Elements: els, SavedAt: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		return b.Put([]byte(sceneID), data)
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *BoltStore) CreateUser(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(usersBucket)
		emails := tx.Bucket(emailsBucket)

		key := []byte(strings.ToLower(u.Email))
		if emails.Get(key) != nil || users.Get([]byte(u.ID)) != nil {
			return ErrConflict
		}

		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		if err := users.Put([]byte(u.ID), data); err != nil {
			return err
		}
		return emails.Put(key, []byte(u.ID))
	})
}

func (s *BoltStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	var u User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(emailsBucket).Get([]byte(strings.ToLower(email)))
		if id == nil {
			return ErrNotFound
		}
		return getUser(tx, id, &u)
	})
	return u, err
}

func (s *BoltStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	var u User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getUser(tx, []byte(id), &u)
	})
	return u, err
}

func getUser(tx *bbolt.Tx, id []byte, u *User) error {
	data := tx.Bucket(usersBucket).Get(id)
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, u)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
