// Package settings resolves the runtime settings of the layeredconfig tool from
// defaults, LAYEREDCONFIG_* environment variables and command-line flags, with
// precedence: flags > environment > defaults.
package settings
