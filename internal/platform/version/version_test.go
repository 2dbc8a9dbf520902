package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Service, info.Service)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, Version, info.Version)
}

func TestInfo_String(t *testing.T) {
	info := Info{Service: "svc", Version: "v1.2.3", Commit: "abc", BuildTime: "now", GoVersion: "go1.26"}
	assert.Equal(t, "svc v1.2.3 (commit abc, built now, go1.26)", info.String())
}
