package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.Equal(t, "unknown", info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestGet_InjectedValuesWin(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	})

	Version = "v1.4.0"
	Commit = "abc1234"
	BuildTime = "2025-03-14T18:30:00Z"

	info := Get()
	assert.Equal(t, "v1.4.0", info.Version)
	assert.Equal(t, "abc1234", info.Commit)
	assert.Equal(t, "2025-03-14T18:30:00Z", info.BuildTime)
}

func TestInfo_JSON(t *testing.T) {
	data, err := json.Marshal(Info{Version: "v1", Commit: "c", BuildTime: "b", GoVersion: "go"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"v1","commit":"c","build_time":"b","go_version":"go"}`, string(data))
}
