// Package modkit provides module wiring and core deps
package modkit

import (
	"facewarden/internal/platform/config"
	"facewarden/internal/platform/logger"
	"facewarden/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	Media *store.Store
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional archives
func (d Deps) ZeroOK() bool { return true }
