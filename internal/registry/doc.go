// Package registry tracks the step kinds compiled into the binary. Modules
// self-register a handler per kind; the engine looks handlers up by the kind
// label used in the pipeline definition.
package registry
