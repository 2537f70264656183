// Package plugin models the plugins the provisioner installs into the IDE
// and parses the installed-roots listing printed by the p2 director.
package plugin
