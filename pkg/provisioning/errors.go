package provisioning

import "errors"

var (
	// ErrSessionActive is returned by Start* when a session is already
	// running for this role; only one Client session and one Server
	// session may exist concurrently.
	ErrSessionActive = errors.New("provisioning: a session is already active")

	// ErrNoSession is returned by Cancel called with no session active.
	// The other application actions return ErrUnexpectedAction instead.
	ErrNoSession = errors.New("provisioning: no active session")

	// ErrUnexpectedAction is returned when an application action is called
	// in a state that does not expect it.
	ErrUnexpectedAction = errors.New("provisioning: action not valid in current state")

	// ErrInvalidAuthSelection is returned by SelectAuthentication when the
	// chosen parameters are internally inconsistent (e.g. a StaticOOB method
	// with no static OOB value supplied).
	ErrInvalidAuthSelection = errors.New("provisioning: invalid authentication selection")

	// ErrMissingOOBPublicKey is returned when PublicKeyMode is OOB but no
	// out-of-band public key was supplied.
	ErrMissingOOBPublicKey = errors.New("provisioning: public key mode requires an out-of-band public key")

	// ErrNoBearer is returned by New{Client,Server} when Config.Bearer is nil.
	ErrNoBearer = errors.New("provisioning: config requires a bearer Manager")
)
