package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X github.com/projecteru2/podfleet/version.VERSION=...".
var (
	NAME     = "podfleet"
	VERSION  = "unknown"
	REVISION = "HEAD"
	BUILTAT  = "now"
)

func String() string {
	return fmt.Sprintf(
		"%s\nVersion:        %s\nGit hash:       %s\nBuilt:          %s\nGolang version: %s\nOS/Arch:        %s/%s\n",
		NAME, VERSION, REVISION, BUILTAT, runtime.Version(), runtime.GOOS, runtime.GOARCH,
	)
}
