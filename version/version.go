// Package version exists solely so that we can store the version of this application
// in one location, despite needing it in several places within the application.
//
// The `version` sub-command reports it, and so does the debug log written when a
// door session starts.
package version

import "fmt"

var (
	// version is populated with our release tag, via a Github Action.
	//
	// See .github/build in the source distribution for details.
	version = "unreleased"
)

// GetVersionBanner returns a banner which is suitable for printing, to show our name,
// version, and homepage link.
func GetVersionBanner() string {

	str := fmt.Sprintf("amidoor %s\n%s\n", version, "https://github.com/skx/amidoor/")
	return str
}

// GetVersionString returns our version number as a string.
func GetVersionString() string {
	return version
}
