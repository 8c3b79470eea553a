package version

// Flag contains extra info about the version. It is empty on release builds.
const Flag = "develop"

var (
	// Version is the full version string
	Version = "0.1.0"

	// GitCommit is set with --ldflags "-X github.com/idsov/recordstore/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if len(GitCommit) >= 8 {
		Version += "-" + GitCommit[:8]
	}
}
