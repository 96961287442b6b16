// Package config loads, validates, and defaults Storyreel configuration.
// Configuration lives in a TOML file; every path field is expanded and
// normalized before use so other packages never handle "~" or relative
// paths.
package config
