package handler_test

import (
	"context"
	"encoding/json"

	"github.com/Rrens/filechat/internal/backup"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/github"
	"github.com/Rrens/filechat/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Send(ctx context.Context, sessionID string, in service.SendInput) (*service.SendResult, error) {
	args := m.Called(ctx, sessionID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SendResult), args.Error(1)
}

func (m *MockChatService) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Turn), args.Error(1)
}

func (m *MockChatService) Clear(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockChatService) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SessionSummary), args.Error(1)
}

func (m *MockChatService) Ping(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type fakeGate struct {
	sync     backup.SyncResult
	restored bool
	status   backup.Status
	err      error
}

func (f *fakeGate) Sync(context.Context) (backup.SyncResult, error) { return f.sync, f.err }
func (f *fakeGate) Restore(context.Context) (bool, error)           { return f.restored, f.err }
func (f *fakeGate) Status(context.Context) (backup.Status, error)   { return f.status, f.err }

type fakeCache struct{ deleted int64 }

func (f *fakeCache) Flush(context.Context) (int64, error) { return f.deleted, nil }

type fakeStore struct{ err error }

func (f fakeStore) Ping(context.Context) error { return f.err }

type fakeGitHub struct {
	files map[string]*github.File
}

func (f *fakeGitHub) ListRepos(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[{"name":"filechat"}]`), nil
}

func (f *fakeGitHub) GetFile(_ context.Context, owner, repo, path string) (*github.File, error) {
	if file, ok := f.files[owner+"/"+repo+"/"+path]; ok {
		return file, nil
	}
	return nil, github.ErrNotFound
}
