//go:build tools

// Package tools pins the code generators used by `go generate` in the main module.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
