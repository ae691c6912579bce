// Package config provides configuration structures and utilities for
// linkcollector. It defines the crawl settings shared by the collect and
// serve commands, report preferences, and the optional per-site YAML file.
package config
