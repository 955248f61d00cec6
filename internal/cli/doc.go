// Package cli parses the command line into an app.Config.
package cli
