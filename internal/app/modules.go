package app

import (
	"github.com/pipewerk/pipewerk/internal/registry"
	"github.com/pipewerk/pipewerk/modules/exec"
	"github.com/pipewerk/pipewerk/modules/git"
)

// coreModules is the definitive list of step modules compiled into the
// pipewerk binary.
var coreModules = []registry.Module{
	&exec.Module{},
	&git.Module{},
}
