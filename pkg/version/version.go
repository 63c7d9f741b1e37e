package version

// version is set at build time with -ldflags "-X github.com/cbodonnell/emberlink/pkg/version.version=..."
var version = "dev"

// Get returns the version of the client binary.
func Get() string {
	return version
}
