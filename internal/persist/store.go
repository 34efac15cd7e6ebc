// Package persist stores scene snapshots and user accounts.
//
// A scene snapshot is the full record list, tombstones included, so that a
// reloaded room keeps rejecting stale resurrections.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inamate/sketchboard/internal/element"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Storer is implemented by every backend.
type Storer interface {
	// LoadScene returns the latest snapshot of a scene, or ErrNotFound.
	LoadScene(ctx context.Context, sceneID string) ([]element.Element, error)
	// SaveScene writes a new snapshot and returns its sequence number,
	// starting at 1 per scene.
	SaveScene(ctx context.Context, sceneID string, els []element.Element) (int64, error)

	// CreateUser fails with ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)

	Close() error
}

type snapshot struct {
	Version  int64             `json:"version"`
	Elements []element.Element `json:"elements"`
	SavedAt  time.Time         `json:"savedAt"`
}

func encodeElements(els []element.Element) ([]byte, error) {
	if els == nil {
		els = []element.Element{}
	}
	data, err := json.Marshal(els)
	if err != nil {
		return nil, fmt.Errorf("marshal elements: %w", err)
	}
	return data, nil
}

func decodeElements(data []byte) ([]element.Element, error) {
	var els []element.Element
	if err := json.Unmarshal(data, &els); err != nil {
		return nil, fmt.Errorf("unmarshal elements: %w", err)
	}
	return els, nil
}
