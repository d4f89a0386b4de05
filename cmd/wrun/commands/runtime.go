package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	"github.com/slok/wrun/internal/runtime/container"
	"github.com/slok/wrun/internal/runtime/local"
	"github.com/slok/wrun/internal/runtime/ssh"
)

// newRuntimeFromConfig creates the execution runtime matching the workspace's
// runtime configuration.
func newRuntimeFromConfig(w model.Workspace, logger log.Logger) (runtime.Runtime, error) {
	switch w.Runtime.Kind {
	case model.RuntimeKindLocal:
		return local.NewRuntime(local.Config{Logger: logger})

	case model.RuntimeKindSSH:
		identityFile := w.Runtime.SSH.IdentityFile
		if identityFile == "" {
			identityFile = filepath.Join(homedir.HomeDir(), ".ssh", "id_rsa")
		}
		privateKey, err := os.ReadFile(identityFile)
		if err != nil {
			return nil, fmt.Errorf("could not read SSH identity file %q: %w", identityFile, err)
		}

		return ssh.NewRuntime(ssh.Config{
			Host:       w.Runtime.SSH.Host,
			Port:       w.Runtime.SSH.Port,
			User:       w.Runtime.SSH.User,
			PrivateKey: privateKey,
			Logger:     logger,
		})

	case model.RuntimeKindContainer:
		return container.NewRuntime(container.Config{
			ContainerName: w.Runtime.Container.ContainerName,
			Image:         w.Runtime.Container.Image,
			Logger:        logger,
		})

	default:
		return nil, fmt.Errorf("unknown runtime kind %q: %w", w.Runtime.Kind, model.ErrNotValid)
	}
}

// newRuntimeFactory adapts newRuntimeFromConfig to the app services' factory shape.
func newRuntimeFactory(logger log.Logger) func(w model.Workspace) (runtime.Runtime, error) {
	return func(w model.Workspace) (runtime.Runtime, error) {
		return newRuntimeFromConfig(w, logger)
	}
}
