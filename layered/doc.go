// Package layered loads configuration from an ordered list of YAML files and
// deep-merges them into a single mapping, later files overriding earlier
// ones. Nested mappings merge key by key; sequences and scalars are replaced.
//
// Configurations can be constructed directly with New, or through Instance,
// which keeps one live configuration per Go type until Reset is called.
// A Watcher reloads a configuration when its files change on disk.
package layered
