package awsexpect

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionFile string

// Version is the current version of the awsexpect library.
var Version = strings.TrimSpace(versionFile)
