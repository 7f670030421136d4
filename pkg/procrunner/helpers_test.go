package procrunner

import (
	"os/exec"

	"github.com/stretchr/testify/suite"
)

// requireBinary skips the test unless the ssrrunner binary is installed.
// go install github.com/stumble/v8ssr/cmd/ssrrunner
func requireBinary(s *suite.Suite) {
	if _, err := exec.LookPath(DefaultBinary); err != nil {
		s.T().Skipf("%s not installed: %v", DefaultBinary, err)
	}
}

func ptr[T any](s T) *T {
	return &s
}
