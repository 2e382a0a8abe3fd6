//go:build tools
// +build tools

// Package tools pins the code generators run through go generate,
// so mockgen resolves from go.mod on a fresh checkout.
package hidden_talk

import (
	_ "go.uber.org/mock/mockgen"
)
