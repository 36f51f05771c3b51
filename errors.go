package dcgan_go

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfiguration Unknown activation/normalization name or non-positive size parameter
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidGeometry Image size can't be reduced to (or grown from) 4x4 by halving (doubling)
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrInvalidInputShape Input node doesn't match the shape expected by network
	ErrInvalidInputShape = errors.New("invalid input shape")
)
