package runtime

import (
	"fmt"
	"runtime"
)

// Version is the one-sdk-go release embedded in the User-Agent string.
// Overridden at build time via -ldflags, defaulting to "dev" otherwise.
var Version = "dev"

// UserAgent builds the default User-Agent string fed into both the
// guest's WASI environment (ONESDK_DEFAULT_USERAGENT) and Persistence's
// outbound requests, the Go equivalent of WasiApp.user_agent() in
// app.py.
func UserAgent() string {
	return fmt.Sprintf("one-sdk-go/%s (%s %s) go/%s", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
