// Package config loads toolbatch configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// config file (YAML, JSON or TOML, chosen by extension), and environment
// variables prefixed with TOOLBATCH_. A key such as cache.max_size maps to
// TOOLBATCH_CACHE_MAX_SIZE. Dotenv files are loaded into the process
// environment before the environment is read; variables that are already set
// win over dotenv values.
package config
