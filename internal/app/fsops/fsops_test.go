package fsops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/wrun/internal/app/fsops"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	"github.com/slok/wrun/internal/runtime/fake"
	"github.com/slok/wrun/internal/storage/storagemock"
)

func testWorkspace() *model.Workspace {
	return &model.Workspace{
		ID:         "ws-id",
		Name:       "test-workspace",
		ProjectDir: "/project",
		Runtime:    model.RuntimeConfig{Kind: model.RuntimeKindLocal},
	}
}

func newTestService(t *testing.T, rt *fake.Runtime) *fsops.Service {
	t.Helper()

	mRepo := &storagemock.MockRepository{}
	mRepo.On("GetWorkspaceByName", mock.Anything, "test-workspace").Return(testWorkspace(), nil)

	svc, err := fsops.NewService(fsops.ServiceConfig{
		Repository:     mRepo,
		RuntimeFactory: func(w model.Workspace) (runtime.Runtime, error) { return rt, nil },
	})
	require.NoError(t, err)

	return svc
}

func TestReadFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt, err := fake.NewRuntime(fake.Config{})
	require.NoError(err)
	require.NoError(rt.WriteFile(context.Background(), "/project/a.txt", []byte("content")))

	svc := newTestService(t, rt)

	// Relative paths resolve against the project dir.
	data, err := svc.ReadFile(context.Background(), fsops.Request{WorkspaceNameOrID: "test-workspace", Path: "a.txt"})
	require.NoError(err)
	assert.Equal("content", string(data))

	_, err = svc.ReadFile(context.Background(), fsops.Request{WorkspaceNameOrID: "test-workspace", Path: "missing.txt"})
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestWriteFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt, err := fake.NewRuntime(fake.Config{})
	require.NoError(err)

	svc := newTestService(t, rt)

	err = svc.WriteFile(context.Background(), fsops.Request{WorkspaceNameOrID: "test-workspace", Path: "sub/new.txt"}, []byte("written"))
	require.NoError(err)

	assert.Equal("written", rt.Files()["/project/sub/new.txt"])
}

func TestWriteFileHomePath(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt, err := fake.NewRuntime(fake.Config{Home: "/home/dev"})
	require.NoError(err)

	svc := newTestService(t, rt)

	err = svc.WriteFile(context.Background(), fsops.Request{WorkspaceNameOrID: "test-workspace", Path: "~/notes.txt"}, []byte("note"))
	require.NoError(err)

	assert.Equal("note", rt.Files()["/home/dev/notes.txt"])
}

func TestWriteFileSSHSourceBaseDir(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	workspace := &model.Workspace{
		ID:         "ws-id",
		Name:       "remote-workspace",
		ProjectDir: "/project",
		Runtime: model.RuntimeConfig{
			Kind: model.RuntimeKindSSH,
			SSH:  &model.SSHRuntimeConfig{Host: "10.0.0.5", User: "dev", SrcBaseDir: "/srv/code"},
		},
	}

	rt, err := fake.NewRuntime(fake.Config{Kind: model.RuntimeKindSSH})
	require.NoError(err)

	mRepo := &storagemock.MockRepository{}
	mRepo.On("GetWorkspaceByName", mock.Anything, "remote-workspace").Return(workspace, nil)

	svc, err := fsops.NewService(fsops.ServiceConfig{
		Repository:     mRepo,
		RuntimeFactory: func(w model.Workspace) (runtime.Runtime, error) { return rt, nil },
	})
	require.NoError(err)

	// Relative paths resolve against the configured remote base dir, not the
	// project dir.
	err = svc.WriteFile(context.Background(), fsops.Request{WorkspaceNameOrID: "remote-workspace", Path: "pkg/main.go"}, []byte("package main"))
	require.NoError(err)

	assert.Equal("package main", rt.Files()["/srv/code/pkg/main.go"])
}

func TestStatFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt, err := fake.NewRuntime(fake.Config{})
	require.NoError(err)
	require.NoError(rt.WriteFile(context.Background(), "/project/a.txt", []byte("12345")))

	svc := newTestService(t, rt)

	stat, err := svc.StatFile(context.Background(), fsops.Request{WorkspaceNameOrID: "test-workspace", Path: "a.txt"})
	require.NoError(err)
	assert.Equal(int64(5), stat.SizeBytes)
	assert.False(stat.IsDir)
}

func TestEmptyPathRejected(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt, err := fake.NewRuntime(fake.Config{})
	require.NoError(err)

	svc := newTestService(t, rt)

	_, err = svc.ReadFile(context.Background(), fsops.Request{WorkspaceNameOrID: "test-workspace"})
	assert.ErrorIs(err, model.ErrNotValid)
}
