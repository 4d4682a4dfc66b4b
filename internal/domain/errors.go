package domain

import "fmt"

// NotFoundError represents a missing resource, including records whose
// cache entry has expired.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// FetchError represents a failure to retrieve a manifest from a URL or a
// local file.
type FetchError struct {
	Source string
	Err    error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("failed to fetch manifest from %s: %v", e.Source, e.Err)
}

func (e FetchError) Unwrap() error { return e.Err }

func (e FetchError) Is(target error) bool {
	_, ok := target.(FetchError)
	if ok {
		return true
	}
	_, ok = target.(*FetchError)
	return ok
}

// ErrFetch is the sentinel error for manifest retrieval failures.
var ErrFetch = FetchError{}

// ValidationEngineError represents a failed rule-engine invocation. It is
// distinct from validation findings, which are data, not errors.
type ValidationEngineError struct {
	Err error
}

func (e ValidationEngineError) Error() string {
	return fmt.Sprintf("manifest validation engine failed: %v", e.Err)
}

func (e ValidationEngineError) Unwrap() error { return e.Err }

func (e ValidationEngineError) Is(target error) bool {
	_, ok := target.(ValidationEngineError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationEngineError)
	return ok
}

// ErrValidationEngine is the sentinel error for rule-engine failures.
var ErrValidationEngine = ValidationEngineError{}

// NormalizationError represents a failed start-URL resolution.
type NormalizationError struct {
	Err error
}

func (e NormalizationError) Error() string {
	return fmt.Sprintf("manifest normalization failed: %v", e.Err)
}

func (e NormalizationError) Unwrap() error { return e.Err }

func (e NormalizationError) Is(target error) bool {
	_, ok := target.(NormalizationError)
	if ok {
		return true
	}
	_, ok = target.(*NormalizationError)
	return ok
}

// ErrNormalization is the sentinel error for normalization failures.
var ErrNormalization = NormalizationError{}

// ProbeError represents any browser-automation failure other than the
// designated service-worker readiness timeout.
type ProbeError struct {
	URL string
	Err error
}

func (e ProbeError) Error() string {
	return fmt.Sprintf("service worker probe of %s failed: %v", e.URL, e.Err)
}

func (e ProbeError) Unwrap() error { return e.Err }

func (e ProbeError) Is(target error) bool {
	_, ok := target.(ProbeError)
	if ok {
		return true
	}
	_, ok = target.(*ProbeError)
	return ok
}

// ErrProbe is the sentinel error for probe failures.
var ErrProbe = ProbeError{}

// ProjectBuildError represents a project builder failure, carrying the
// collaborator-provided detail.
type ProjectBuildError struct {
	Err error
}

func (e ProjectBuildError) Error() string {
	return fmt.Sprintf("project build failed: %v", e.Err)
}

func (e ProjectBuildError) Unwrap() error { return e.Err }

func (e ProjectBuildError) Is(target error) bool {
	_, ok := target.(ProjectBuildError)
	if ok {
		return true
	}
	_, ok = target.(*ProjectBuildError)
	return ok
}

// ErrProjectBuild is the sentinel error for project build failures.
var ErrProjectBuild = ProjectBuildError{}

// PackageError represents a packaging failure in the project builder.
type PackageError struct {
	Err error
}

func (e PackageError) Error() string {
	return fmt.Sprintf("project packaging failed: %v", e.Err)
}

func (e PackageError) Unwrap() error { return e.Err }

func (e PackageError) Is(target error) bool {
	_, ok := target.(PackageError)
	if ok {
		return true
	}
	_, ok = target.(*PackageError)
	return ok
}

// ErrPackage is the sentinel error for packaging failures.
var ErrPackage = PackageError{}
