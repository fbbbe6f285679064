// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/pakt/pakt/internal/app/execute"
	"github.com/pakt/pakt/internal/config"
	"github.com/pakt/pakt/internal/issue"
	"github.com/pakt/pakt/pkg/downloader"
	"github.com/pakt/pakt/pkg/installer"
	"github.com/pakt/pakt/pkg/manifest"
	"github.com/pakt/pakt/pkg/repository"
	"github.com/pakt/pakt/pkg/resolver"
	"github.com/pakt/pakt/pkg/version"
)

// ServiceError is an error that carries rendering information for the CLI
// layer. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints the styled message, then the issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, style string) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if entry := issue.Get(svcErr.IssueID); entry != nil {
		rendered, err := entry.Render(style)
		if err != nil {
			fmt.Fprintf(stderr, "%s failed to render help: %v\n", WarningStyle.Render("warning:"), err)
			return
		}
		fmt.Fprint(stderr, rendered)
	}
}

// classifyError maps a failure to its catalog entry and exit code.
func classifyError(err error) (issue.Id, ExitCode) {
	var ae *issue.ActionableError
	switch {
	case errors.Is(err, manifest.ErrManifestNotFound):
		return issue.ManifestNotFoundId, ExitInvalidInput
	case errors.Is(err, resolver.ErrUnsatisfiableConstraints):
		return issue.ResolutionFailedId, ExitResolution
	case errors.Is(err, installer.ErrPackageNotFound):
		return issue.PackageNotFoundId, ExitResolution
	case errors.Is(err, installer.ErrDirectoryNotEmpty):
		return issue.DirectoryNotEmptyId, ExitInvalidInput
	case errors.Is(err, installer.ErrHookBlocked):
		return issue.HookBlockedId, ExitFailure
	case errors.Is(err, downloader.ErrChecksumMismatch):
		return issue.ChecksumMismatchId, ExitFailure
	case errors.Is(err, downloader.ErrDirtyWorkingCopy):
		return issue.LocalChangesId, ExitFailure
	case errors.Is(err, exec.ErrNotFound):
		return issue.VcsNotFoundId, ExitFailure
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId, ExitFailure
	case errors.Is(err, repository.ErrRepositoryUnavailable),
		errors.Is(err, downloader.ErrMissingSourceReference),
		errors.Is(err, downloader.ErrNoInstallationSource),
		errors.Is(err, downloader.ErrUnsupportedType),
		errors.Is(err, downloader.ErrUnsafeArgument):
		return issue.DownloadFailedId, ExitFailure
	case errors.As(err, &ae) && ae.Issue != 0:
		if ae.Issue == issue.ManifestParseErrorId || ae.Issue == issue.ConfigLoadFailedId {
			return ae.Issue, ExitInvalidInput
		}
		return ae.Issue, ExitFailure
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, execute.ErrUnknownRepositoryType),
		errors.Is(err, version.ErrInvalidVersionFormat),
		errors.Is(err, manifest.ErrInvalidName):
		return 0, ExitInvalidInput
	default:
		return 0, ExitFailure
	}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their Format method, which lists the whole chain when verbose.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// toServiceError classifies err and wraps it for rendering and exit.
func toServiceError(err error, verbose bool) *ExitError {
	id, code := classifyError(err)
	styled := fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	return &ExitError{Code: code, Err: newServiceError(err, id, styled)}
}
