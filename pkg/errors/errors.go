package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
)

// Operations recorded on platform errors
const (
	OpLinkAdd        = "link-add"
	OpLinkDelete     = "link-delete"
	OpLinkGet        = "link-get"
	OpLinkSetUp      = "link-set-up"
	OpLinkSetDown    = "link-set-down"
	OpLinkSetARP     = "link-set-arp"
	OpLinkSetAddress = "link-set-address"
	OpLinkSetMTU     = "link-set-mtu"
	OpLinkSetVlanMap = "link-set-vlan-map"
	OpLinkEnslave    = "link-enslave"
	OpLinkRelease    = "link-release"
	OpLinkOption     = "link-option"
	OpLinkProperties = "link-properties"
	OpAddressAdd     = "address-add"
	OpAddressDelete  = "address-delete"
	OpAddressGet     = "address-get"
	OpRouteAdd       = "route-add"
	OpRouteDelete    = "route-delete"
	OpRouteGet       = "route-get"
	OpSysctlGet      = "sysctl-get"
	OpSysctlSet      = "sysctl-set"
	OpDump           = "dump"
)

type (
	// PlatformError is implemented by every typed failure returned by a backend.
	// Op names the operation and Key the object it was applied to.
	PlatformError interface {
		error
		Op() string
		Key() string
	}

	HttpCodeProvidingError interface {
		HttpStatus() int
	}

	opError struct {
		op    string
		key   string
		cause error
	}

	// NotFoundError is returned when the object is absent. Deletes treat it as success.
	NotFoundError struct{ opError }

	// AlreadyExistsError is returned when an identical object is present. Adds treat it as success.
	AlreadyExistsError struct{ opError }

	// NoFirmwareError is returned when bringing a link up failed because its
	// driver could not load firmware. It is never retried.
	NoFirmwareError struct{ opError }

	PermissionDeniedError struct{ opError }

	GenericError struct{ opError }
)

func (e *opError) Op() string    { return e.op }
func (e *opError) Key() string   { return e.key }
func (e *opError) Unwrap() error { return e.cause }

func (e *opError) describe(kind string) string {
	msg := fmt.Sprintf("%s %s: %s", e.op, e.key, kind)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *NotFoundError) Error() string         { return e.describe("not found") }
func (e *AlreadyExistsError) Error() string    { return e.describe("already exists") }
func (e *NoFirmwareError) Error() string       { return e.describe("firmware missing") }
func (e *PermissionDeniedError) Error() string { return e.describe("permission denied") }
func (e *GenericError) Error() string          { return e.describe("failed") }

func (e *NotFoundError) HttpStatus() int         { return http.StatusNotFound }
func (e *AlreadyExistsError) HttpStatus() int    { return http.StatusConflict }
func (e *NoFirmwareError) HttpStatus() int       { return http.StatusFailedDependency }
func (e *PermissionDeniedError) HttpStatus() int { return http.StatusForbidden }
func (e *GenericError) HttpStatus() int          { return http.StatusInternalServerError }

func NewNotFoundError(op, key string, cause error) *NotFoundError {
	return &NotFoundError{opError{op: op, key: key, cause: cause}}
}

func NewAlreadyExistsError(op, key string, cause error) *AlreadyExistsError {
	return &AlreadyExistsError{opError{op: op, key: key, cause: cause}}
}

func NewNoFirmwareError(op, key string, cause error) *NoFirmwareError {
	return &NoFirmwareError{opError{op: op, key: key, cause: cause}}
}

func NewPermissionDeniedError(op, key string, cause error) *PermissionDeniedError {
	return &PermissionDeniedError{opError{op: op, key: key, cause: cause}}
}

func NewGenericError(op, key string, cause error) *GenericError {
	return &GenericError{opError{op: op, key: key, cause: cause}}
}

// Classify converts a raw backend failure into the platform error taxonomy.
// Errors that are already typed pass through unchanged.
func Classify(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var pe PlatformError
	if errors.As(err, &pe) {
		return err
	}

	var errno unix.Errno
	if !errors.As(err, &errno) {
		return NewGenericError(op, key, err)
	}

	switch errno {
	case unix.ENOENT:
		// the kernel reports a failed firmware load on bring-up as ENOENT
		if op == OpLinkSetUp {
			return NewNoFirmwareError(op, key, err)
		}
		return NewNotFoundError(op, key, err)
	case unix.ENODEV, unix.ESRCH, unix.EADDRNOTAVAIL, unix.ENXIO:
		return NewNotFoundError(op, key, err)
	case unix.EEXIST:
		return NewAlreadyExistsError(op, key, err)
	case unix.EPERM, unix.EACCES:
		return NewPermissionDeniedError(op, key, err)
	default:
		return NewGenericError(op, key, err)
	}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsAlreadyExists(err error) bool {
	var ae *AlreadyExistsError
	return errors.As(err, &ae)
}

func IsNoFirmware(err error) bool {
	var nf *NoFirmwareError
	return errors.As(err, &nf)
}

func IsPermissionDenied(err error) bool {
	var pd *PermissionDeniedError
	return errors.As(err, &pd)
}

// LogError records a failure with the fields needed to diagnose it: the
// operation and the key it targeted.
func LogError(ctx context.Context, err error) {
	log := logger.FromContext(ctx)

	var pe PlatformError
	if errors.As(err, &pe) {
		log = log.WithFields(logrus.Fields{
			"op":  pe.Op(),
			"key": pe.Key(),
		})
	}
	log.Errorf("Platform operation failed: %v", err)
}

// HttpStatus maps err to the status code the status server answers with
func HttpStatus(err error) int {
	var hcpe HttpCodeProvidingError
	if errors.As(err, &hcpe) {
		return hcpe.HttpStatus()
	}
	return http.StatusInternalServerError
}

// Kind names the taxonomy class of err, for metric labels
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return "not-found"
	case IsAlreadyExists(err):
		return "already-exists"
	case IsNoFirmware(err):
		return "no-firmware"
	case IsPermissionDenied(err):
		return "permission-denied"
	default:
		return "generic"
	}
}

// OpOf is the operation recorded on err, or "unknown" for untyped errors
func OpOf(err error) string {
	var pe PlatformError
	if errors.As(err, &pe) {
		return pe.Op()
	}
	return "unknown"
}
