// Package atrt carries the runtime hooks referenced by atc-generated code.
package atrt

// Gettext is invoked for every _( ... ) interpolation in a template. The
// default is the identity; hosts install their translator at startup.
var Gettext = func(s string) string { return s }
