// Package plugins reconciles the installed IDE plugins with the configured list.
//
// It drives the p2 director bundled with the IDE: the installed roots are
// listed, missing plugins are installed one at a time with a transaction tag
// and every install is verified by listing the roots again.
package plugins
