// Package config defines Ganymede's process-wide configuration.
//
// Configuration is loaded once at startup from a YAML file, merged with
// defaults, optionally overridden by environment variables, validated, and
// then passed by reference to every component that needs it. There is no
// global singleton: construct-once-and-inject is the rule.
//
// A Watcher can additionally observe the config file for changes and deliver
// reloaded configurations, which the runtime uses to adjust alert thresholds
// without a restart.
package config
