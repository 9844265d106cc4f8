// Package persist stores scenes and their document revisions. Every save
// appends a numbered revision holding the canonical document JSON; loading
// takes the newest one.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/isocanvas/isocanvas/internal/document"
)

var (
	ErrNotFound = errors.New("scene not found")
	ErrExists   = errors.New("scene already exists")
)

type SceneInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Revision struct {
	ID        string    `json:"id"`
	SceneID   string    `json:"sceneId"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository is implemented by the SQLite and Postgres stores.
type Repository interface {
	CreateScene(ctx context.Context, id, name string) (*SceneInfo, error)
	GetScene(ctx context.Context, id string) (*SceneInfo, error)
	ListScenes(ctx context.Context) ([]SceneInfo, error)
	DeleteScene(ctx context.Context, id string) error
	SaveRevision(ctx context.Context, sceneID string, doc *document.Document) (*Revision, error)
	LatestRevision(ctx context.Context, sceneID string) (*document.Document, *Revision, error)
	Close() error
}

func encode(doc *document.Document) ([]byte, error) {
	data, err := doc.JSON()
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}
