package app

import (
	"os"
	"strconv"
	"sync"
)

// testModeEnv is set by the testing package; binaries linked into a test run then
// skip dialing postgres and redis.
const testModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(readTestMode)

func readTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	return on
}

// InTestMode reports whether the server and worker entry points should return early.
func InTestMode() bool {
	return testMode()
}
