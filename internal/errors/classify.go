package errors

import (
	"errors"
	"strings"
	"syscall"
)

// BindClass is the closed set of outcomes the supervisor cares about
// when a listener cannot be created.
type BindClass int

const (
	BindOther BindClass = iota
	AddressInUse
	AddressUnavailable
)

func (c BindClass) String() string {
	switch c {
	case AddressInUse:
		return "address in use"
	case AddressUnavailable:
		return "address unavailable"
	default:
		return "other"
	}
}

// Invalidates reports whether a bind failure of this class makes the
// address unusable until the user supplies another one.
func (c BindClass) Invalidates() bool {
	return c == AddressInUse || c == AddressUnavailable
}

// ClassifyBind maps a listen error of any shape onto a BindClass.
func ClassifyBind(err error) BindClass {
	if err == nil {
		return BindOther
	}
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return AddressInUse
	case errors.Is(err, syscall.EADDRNOTAVAIL):
		return AddressUnavailable
	}

	// Some platforms surface these only as text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "address already in use"),
		strings.Contains(msg, "only one usage of each socket address"):
		return AddressInUse
	case strings.Contains(msg, "cannot assign requested address"),
		strings.Contains(msg, "requested address is not valid"):
		return AddressUnavailable
	}
	return BindOther
}
