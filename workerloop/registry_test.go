package workerloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubHandler struct{}

func (stubHandler) Methods() map[string]MethodFunc { return map[string]MethodFunc{} }

func TestRegisterAndLookup(t *testing.T) {
	Register("stub-type", func(path string) (Handler, error) {
		return stubHandler{}, nil
	})

	factory, ok := lookup("stub-type")
	require_ := assert.New(t)
	require_.True(ok)

	h, err := factory("/tmp/whatever")
	require_.NoError(err)
	require_.IsType(stubHandler{}, h)
}

func TestLookupMissingType(t *testing.T) {
	_, ok := lookup("never-registered-type")
	assert.False(t, ok)
}
