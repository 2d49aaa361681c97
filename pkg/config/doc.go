// Package config loads the YAML configuration file controlling a fact
// collection run: logging, custom fact directories, the fact blocklist, and
// statically seeded facts.
package config
