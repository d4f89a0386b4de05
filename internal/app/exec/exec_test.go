package exec_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appexec "github.com/slok/wrun/internal/app/exec"
	"github.com/slok/wrun/internal/hook"
	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	"github.com/slok/wrun/internal/runtime/fake"
	"github.com/slok/wrun/internal/runtime/runtimemock"
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

func fakeFactory(t *testing.T, onExec fake.ExecHandler) appexec.RuntimeFactory {
	t.Helper()

	return func(w model.Workspace) (runtime.Runtime, error) {
		return fake.NewRuntime(fake.Config{OnExec: onExec})
	}
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    appexec.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create service successfully": {
			cfg: appexec.ServiceConfig{
				Repository:     &storagemock.MockRepository{},
				RuntimeFactory: func(model.Workspace) (runtime.Runtime, error) { return nil, nil },
				Logger:         log.Noop,
			},
		},

		"Missing repository should fail": {
			cfg: appexec.ServiceConfig{
				RuntimeFactory: func(model.Workspace) (runtime.Runtime, error) { return nil, nil },
			},
			expErr: true,
		},

		"Missing runtime factory should fail": {
			cfg: appexec.ServiceConfig{
				Repository: &storagemock.MockRepository{},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			svc, err := appexec.NewService(test.cfg)

			if test.expErr {
				assert.Error(err)
				assert.Nil(svc)
			} else {
				assert.NoError(err)
				assert.NotNil(svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		mock   func(mRepo *storagemock.MockRepository)
		onExec fake.ExecHandler
		req    appexec.Request
		expErr error
		expRes *runtime.CaptureResult
	}{
		"Executing a command in a known workspace should succeed": {
			req: appexec.Request{WorkspaceNameOrID: "test-workspace", Command: "echo hello"},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("GetWorkspaceByName", mock.Anything, "test-workspace").Once().Return(testWorkspace(), nil)
			},
			onExec: func(command string, opts model.ExecOptions) (string, string, int) {
				return "hello\n", "", 0
			},
			expRes: &runtime.CaptureResult{Stdout: "hello\n", ExitCode: 0},
		},

		"A nonzero exit code should succeed and surface the code": {
			req: appexec.Request{WorkspaceNameOrID: "test-workspace", Command: "false"},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("GetWorkspaceByName", mock.Anything, "test-workspace").Once().Return(testWorkspace(), nil)
			},
			onExec: func(command string, opts model.ExecOptions) (string, string, int) {
				return "", "failed\n", 1
			},
			expRes: &runtime.CaptureResult{Stderr: "failed\n", ExitCode: 1},
		},

		"An unknown name should fall back to an ID lookup": {
			req: appexec.Request{WorkspaceNameOrID: "ws-id", Command: "true"},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("GetWorkspaceByName", mock.Anything, "ws-id").Once().Return(nil, model.ErrNotFound)
				mRepo.On("GetWorkspace", mock.Anything, "ws-id").Once().Return(testWorkspace(), nil)
			},
			onExec: func(command string, opts model.ExecOptions) (string, string, int) { return "", "", 0 },
			expRes: &runtime.CaptureResult{ExitCode: 0},
		},

		"An unknown workspace should fail": {
			req: appexec.Request{WorkspaceNameOrID: "nope", Command: "true"},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("GetWorkspaceByName", mock.Anything, "nope").Once().Return(nil, model.ErrNotFound)
				mRepo.On("GetWorkspace", mock.Anything, "nope").Once().Return(nil, model.ErrNotFound)
			},
			expErr: model.ErrNotFound,
		},

		"An empty command should fail": {
			req:    appexec.Request{WorkspaceNameOrID: "test-workspace"},
			mock:   func(mRepo *storagemock.MockRepository) {},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			mRepo := &storagemock.MockRepository{}
			test.mock(mRepo)

			svc, err := appexec.NewService(appexec.ServiceConfig{
				Repository:     mRepo,
				RuntimeFactory: fakeFactory(t, test.onExec),
			})
			require.NoError(t, err)

			result, err := svc.Run(context.Background(), test.req)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
				assert.Equal(test.expRes, result.Exec)
				assert.Nil(result.Hook)
			}

			mRepo.AssertExpectations(t)
		})
	}
}

func TestServiceRunRuntimeFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mRepo := &storagemock.MockRepository{}
	mRepo.On("GetWorkspaceByName", mock.Anything, "test-workspace").Once().Return(testWorkspace(), nil)

	mRuntime := &runtimemock.MockRuntime{}
	mRuntime.On("NormalizePath", "/project", "/project").Once().Return("/project")
	mRuntime.On("Exec", mock.Anything, "boom", mock.Anything).Once().Return(nil, model.ErrSpawn)
	mRuntime.On("Close").Once().Return(nil)

	svc, err := appexec.NewService(appexec.ServiceConfig{
		Repository:     mRepo,
		RuntimeFactory: func(model.Workspace) (runtime.Runtime, error) { return mRuntime, nil },
	})
	require.NoError(err)

	_, err = svc.Run(context.Background(), appexec.Request{WorkspaceNameOrID: "test-workspace", Command: "boom"})

	assert.ErrorIs(err, model.ErrSpawn)
	mRuntime.AssertExpectations(t)
}

func TestServiceRunDefaultsWorkingDirToProjectDir(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mRepo := &storagemock.MockRepository{}
	mRepo.On("GetWorkspaceByName", mock.Anything, "test-workspace").Once().Return(testWorkspace(), nil)

	var gotOpts model.ExecOptions
	svc, err := appexec.NewService(appexec.ServiceConfig{
		Repository: mRepo,
		RuntimeFactory: fakeFactory(t, func(command string, opts model.ExecOptions) (string, string, int) {
			gotOpts = opts
			return "", "", 0
		}),
	})
	require.NoError(err)

	_, err = svc.Run(context.Background(), appexec.Request{WorkspaceNameOrID: "test-workspace", Command: "pwd"})
	require.NoError(err)

	assert.Equal("/project", gotOpts.WorkingDir)
}

func TestServiceRunResolvesWorkingDirAgainstSSHSourceBaseDir(t *testing.T) {
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

	mRepo := &storagemock.MockRepository{}
	mRepo.On("GetWorkspaceByName", mock.Anything, "remote-workspace").Once().Return(workspace, nil)

	var gotOpts model.ExecOptions
	svc, err := appexec.NewService(appexec.ServiceConfig{
		Repository: mRepo,
		RuntimeFactory: fakeFactory(t, func(command string, opts model.ExecOptions) (string, string, int) {
			gotOpts = opts
			return "", "", 0
		}),
	})
	require.NoError(err)

	_, err = svc.Run(context.Background(), appexec.Request{
		WorkspaceNameOrID: "remote-workspace",
		Command:           "make build",
		Opts:              model.ExecOptions{WorkingDir: "services/api"},
	})
	require.NoError(err)

	// Relative working dirs resolve against the configured remote base dir.
	assert.Equal("/srv/code/services/api", gotOpts.WorkingDir)
}

func TestServiceRunWithHook(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	hookPath := filepath.Join(t.TempDir(), "hook.sh")
	script := `#!/bin/sh
echo "pre"
echo "WRUN_HOOK_READY"
read result
exit 0
`
	require.NoError(os.WriteFile(hookPath, []byte(script), 0o755))

	hookEngine, err := hook.NewEngine(hook.EngineConfig{
		HookPath:    hookPath,
		PreTimeout:  5 * time.Second,
		PostTimeout: 5 * time.Second,
	})
	require.NoError(err)

	mRepo := &storagemock.MockRepository{}
	mRepo.On("GetWorkspaceByName", mock.Anything, "test-workspace").Once().Return(testWorkspace(), nil)

	svc, err := appexec.NewService(appexec.ServiceConfig{
		Repository: mRepo,
		RuntimeFactory: fakeFactory(t, func(command string, opts model.ExecOptions) (string, string, int) {
			return "tool output\n", "", 0
		}),
		HookEngine: hookEngine,
	})
	require.NoError(err)

	result, err := svc.Run(context.Background(), appexec.Request{WorkspaceNameOrID: "test-workspace", Command: "run-it"})
	require.NoError(err)

	require.NotNil(result.Hook)
	assert.True(result.Hook.Success)
	assert.True(result.Hook.ToolExecuted)
	assert.Equal("pre\n", result.Hook.PreToolOutput)
	require.NotNil(result.Exec)
	assert.Equal("tool output\n", result.Exec.Stdout)
}

func TestServiceRunWithFailingHook(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	hookPath := filepath.Join(t.TempDir(), "hook.sh")
	script := `#!/bin/sh
echo "WRUN_HOOK_READY"
read result
exit 5
`
	require.NoError(os.WriteFile(hookPath, []byte(script), 0o755))

	hookEngine, err := hook.NewEngine(hook.EngineConfig{
		HookPath:    hookPath,
		PreTimeout:  5 * time.Second,
		PostTimeout: 5 * time.Second,
	})
	require.NoError(err)

	mRepo := &storagemock.MockRepository{}
	mRepo.On("GetWorkspaceByName", mock.Anything, "test-workspace").Once().Return(testWorkspace(), nil)

	svc, err := appexec.NewService(appexec.ServiceConfig{
		Repository: mRepo,
		RuntimeFactory: fakeFactory(t, func(command string, opts model.ExecOptions) (string, string, int) {
			return "tool output\n", "", 0
		}),
		HookEngine: hookEngine,
	})
	require.NoError(err)

	result, err := svc.Run(context.Background(), appexec.Request{WorkspaceNameOrID: "test-workspace", Command: "run-it"})

	// The hook failure surfaces as an error, but the command result is kept.
	assert.ErrorIs(err, model.ErrHookExitedNonZero)
	require.NotNil(result)
	require.NotNil(result.Exec)
	assert.Equal("tool output\n", result.Exec.Stdout)
}
