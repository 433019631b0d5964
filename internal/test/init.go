package test

import "github.com/netcfgd/netcfgd/internal/middleware/logger"

// This package should be included whenever you write a test. It will initialize the
// logger and configure it for your test.
func init() {
	logger.Initialize("trace")
}
