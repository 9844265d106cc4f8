package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/persist"
	"github.com/isocanvas/isocanvas/internal/store"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

var (
	ErrNotFound = persist.ErrNotFound
	ErrInvalid  = errors.New("invalid scene")
)

// Live is the part of the collaboration hub the service talks to, so that
// documents of open scenes are read and replaced in memory.
type Live interface {
	Document(ctx context.Context, sceneID string) (*document.Document, error)
	Replace(sceneID string, doc *document.Document) (bool, error)
	Close(sceneID string)
}

type Service struct {
	repo persist.Repository
	live Live
	opts store.Options
}

// NewService builds a scene service. opts is used to validate uploaded
// documents before they are stored.
func NewService(repo persist.Repository, live Live, opts store.Options) *Service {
	return &Service{repo: repo, live: live, opts: opts}
}

// Create registers a scene and seeds revision 1, either empty or with the
// sample content.
func (s *Service) Create(ctx context.Context, name string, sample bool) (*persist.SceneInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	sceneID := typeid.NewSceneID()

	info, err := s.repo.CreateScene(ctx, sceneID, name)
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}

	doc := &document.Document{Version: document.FormatVersion}
	if sample {
		doc = document.NewSampleDocument(sceneID)
	}
	doc.Scene.ID = sceneID
	doc.Scene.Name = name

	rev, err := s.repo.SaveRevision(ctx, sceneID, doc)
	if err != nil {
		return nil, fmt.Errorf("create initial revision: %w", err)
	}
	info.Version = rev.Version
	return info, nil
}

func (s *Service) Get(ctx context.Context, sceneID string) (*persist.SceneInfo, error) {
	if err := checkID(sceneID); err != nil {
		return nil, err
	}
	return s.repo.GetScene(ctx, sceneID)
}

// checkID reports a malformed scene id as not found; such a scene cannot
// exist.
func checkID(sceneID string) error {
	if err := typeid.Validate(sceneID, typeid.PrefixScene); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]persist.SceneInfo, error) {
	scenes, err := s.repo.ListScenes(ctx)
	if err != nil {
		return nil, err
	}
	if scenes == nil {
		scenes = []persist.SceneInfo{}
	}
	return scenes, nil
}

// Delete removes a scene with its revisions and disconnects its editors.
func (s *Service) Delete(ctx context.Context, sceneID string) error {
	if err := checkID(sceneID); err != nil {
		return err
	}
	if err := s.repo.DeleteScene(ctx, sceneID); err != nil {
		return err
	}
	s.live.Close(sceneID)
	return nil
}

// Document returns the current document of a scene: the live state if it is
// open, the latest revision otherwise.
func (s *Service) Document(ctx context.Context, sceneID string) (*document.Document, error) {
	if _, err := s.Get(ctx, sceneID); err != nil {
		return nil, err
	}
	return s.live.Document(ctx, sceneID)
}

// PutDocument replaces the scene's objects with doc. The document is fully
// validated first; an invalid one changes nothing.
func (s *Service) PutDocument(ctx context.Context, sceneID string, doc *document.Document) error {
	info, err := s.Get(ctx, sceneID)
	if err != nil {
		return err
	}
	doc.Scene.ID = sceneID
	if doc.Scene.Name == "" {
		doc.Scene.Name = info.Name
	}
	if _, err := doc.NewStore(s.opts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	live, err := s.live.Replace(sceneID, doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if live {
		return nil
	}
	_, err = s.repo.SaveRevision(ctx, sceneID, doc)
	return err
}
