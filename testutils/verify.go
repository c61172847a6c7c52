// Package testutils holds helpers shared by rgbd package tests.
package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs a package's tests and fails if any goroutine outlives them. Frame readers
// spawned by live drivers must all have exited once their sessions are closed.
func VerifyTestMain(m goleak.TestingM, opts ...goleak.Option) {
	goleak.VerifyTestMain(m, opts...)
}
