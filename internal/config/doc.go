// Package config provides configuration loading and validation for the live
// question service. It reads a YAML file on top of built-in defaults,
// validates each section and converts sections to the types used by the
// segmenter and the pre-detector.
package config
