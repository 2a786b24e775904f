/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo provides information about the library build.
package libinfo

import (
	"regexp"
	"runtime/debug"
	"sync"
)

const libShortName = "go-reqkit"

const moduleName = "github.com/acronis/" + libShortName

var modulePathRegexp = regexp.MustCompile(`^` + regexp.QuoteMeta(moduleName) + `(/v[0-9]+)?$`)

var (
	libVersion     string
	libVersionOnce sync.Once
)

// Version returns the version of the library module the binary is built with, or "v0.0.0" if unknown.
func Version() string {
	libVersionOnce.Do(func() {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			libVersion = moduleVersion(buildInfo.Deps)
		}
		if libVersion == "" {
			libVersion = "v0.0.0"
		}
	})
	return libVersion
}

// UserAgent returns the default User-Agent of HTTP requests sent by the library.
func UserAgent() string {
	return libShortName + "/" + Version()
}

// moduleVersion looks for the library among deps, major version suffixes ("/v2") are accepted.
func moduleVersion(deps []*debug.Module) string {
	for _, dep := range deps {
		if modulePathRegexp.MatchString(dep.Path) {
			if dep.Replace != nil && dep.Replace.Version != "" {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return ""
}
