package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/captions"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/database"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// fakeStore keeps queue items in memory and enforces the same expected-status
// update rule as the database repository
type fakeStore struct {
	mu          sync.Mutex
	items       map[string]*models.QueueItem
	folders     map[string]*models.Folder
	templates   map[string]*models.CaptionTemplate
	media       []*models.MediaUploadResult
	progress    []int
	settingsErr error
	mediaErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:     map[string]*models.QueueItem{},
		folders:   map[string]*models.Folder{},
		templates: map[string]*models.CaptionTemplate{},
	}
}

func (s *fakeStore) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("queue item %s: %w", id, database.ErrNotFound)
	}
	cp := *item
	return &cp, nil
}

func (s *fakeStore) UpdateQueueItem(ctx context.Context, item *models.QueueItem, expected models.QueueStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[item.ID]
	if !ok || stored.Status != expected {
		return database.ErrStaleQueueItem
	}
	cp := *item
	s.items[item.ID] = &cp
	s.progress = append(s.progress, item.Progress)
	return nil
}

func (s *fakeStore) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	folder, ok := s.folders[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return folder, nil
}

func (s *fakeStore) GetOrCreateFolderSettings(ctx context.Context, folderID string) (*models.FolderSettings, error) {
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}
	return models.DefaultFolderSettings(folderID), nil
}

func (s *fakeStore) GetCaptionTemplate(ctx context.Context, id string) (*models.CaptionTemplate, error) {
	template, ok := s.templates[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return template, nil
}

func (s *fakeStore) CreateMediaUpload(ctx context.Context, m *models.MediaUploadResult) error {
	if s.mediaErr != nil {
		return s.mediaErr
	}
	s.media = append(s.media, m)
	return nil
}

func (s *fakeStore) item(id string) *models.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

type MockContent struct {
	mock.Mock
}

func (m *MockContent) Generate(ctx context.Context, localPath, title string, settings *models.FolderSettings, userID string) (*models.GeneratedContent, error) {
	args := m.Called(ctx, localPath, title, settings, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GeneratedContent), args.Error(1)
}

func (m *MockContent) GenerateInVideoCaption(ctx context.Context, localPath, title string, settings *models.FolderSettings, template *models.CaptionTemplate, userID string, override models.CaptionConfig) (string, error) {
	args := m.Called(ctx, localPath, title, settings, template, userID, override)
	return args.String(0), args.Error(1)
}

type MockTransformer struct {
	mock.Mock
}

func (m *MockTransformer) ProcessVideo(ctx context.Context, inputPath, outputPath string, loopCount int, reverse bool) error {
	args := m.Called(ctx, inputPath, outputPath, loopCount, reverse)
	return args.Error(0)
}

func (m *MockTransformer) GetVideoProperties(ctx context.Context, path string) (models.VideoProperties, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(models.VideoProperties), args.Error(1)
}

type MockBurner struct {
	mock.Mock
}

func (m *MockBurner) Burn(ctx context.Context, req captions.BurnRequest) (string, error) {
	args := m.Called(ctx, req)
	if err := args.Error(1); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, localPath, dir, ownerID string) (*models.StorageReference, error) {
	args := m.Called(ctx, localPath, dir, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StorageReference), args.Error(1)
}

type MockProgress struct {
	mock.Mock
}

func (m *MockProgress) SetProgress(ctx context.Context, item *models.QueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}
