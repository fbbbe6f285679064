// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"fmt"

	"github.com/pakt/pakt/pkg/downloader"
	"github.com/pakt/pakt/pkg/pkgmeta"
)

// Operation kinds.
const (
	OpInstall OperationKind = iota + 1
	OpUpdate
	OpRemove
)

type (
	// OperationKind tags the closed set of operations.
	OperationKind int

	// Operation is one planned change to the installed set.
	Operation interface {
		Kind() OperationKind
		// Package returns the package the operation ends with, or the
		// removed package for removals.
		Package() *pkgmeta.Package
		String() string
	}

	// InstallOperation adds a package.
	InstallOperation struct {
		Target *pkgmeta.Package
	}

	// UpdateOperation replaces Initial with Target.
	UpdateOperation struct {
		Initial *pkgmeta.Package
		Target  *pkgmeta.Package
	}

	// RemoveOperation deletes a package.
	RemoveOperation struct {
		Initial *pkgmeta.Package
	}
)

// String returns the kind name.
func (k OperationKind) String() string {
	switch k {
	case OpInstall:
		return "install"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("operation(%d)", int(k))
	}
}

// Kind implements Operation.
func (InstallOperation) Kind() OperationKind { return OpInstall }

// Package implements Operation.
func (o InstallOperation) Package() *pkgmeta.Package { return o.Target }

func (o InstallOperation) String() string {
	return fmt.Sprintf("Installing %s (%s)", o.Target.Name, downloader.FormatVersion(o.Target))
}

// Kind implements Operation.
func (UpdateOperation) Kind() OperationKind { return OpUpdate }

// Package implements Operation.
func (o UpdateOperation) Package() *pkgmeta.Package { return o.Target }

func (o UpdateOperation) String() string {
	return fmt.Sprintf("Updating %s (%s => %s)", o.Target.Name,
		downloader.FormatVersion(o.Initial), downloader.FormatVersion(o.Target))
}

// Kind implements Operation.
func (RemoveOperation) Kind() OperationKind { return OpRemove }

// Package implements Operation.
func (o RemoveOperation) Package() *pkgmeta.Package { return o.Initial }

func (o RemoveOperation) String() string {
	return fmt.Sprintf("Removing %s (%s)", o.Initial.Name, o.Initial.PrettyVersion())
}
