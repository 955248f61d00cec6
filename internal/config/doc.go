// Package config defines the format-agnostic model of a loaded pipeline
// definition, along with the Loader and Converter interfaces that decouple
// the engine from any particular configuration syntax.
package config
