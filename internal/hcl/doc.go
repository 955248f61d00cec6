// Package hcl implements the config.Loader and config.Converter interfaces
// on top of HashiCorp's HCL toolkit. It is the only package that knows the
// pipeline definition is written in HCL.
package hcl
