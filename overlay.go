// overlay.go: Multi-source configuration overlay
//
// Overlay layers command line flags and explicit overrides on top of a
// hierarchical Configuration. Lookup precedence, highest first:
// explicit overrides, flags set on the command line (or via environment
// variables), the base Configuration, flag defaults. Flag names use
// dashes and map to dotted configuration keys, "server-port" reads
// "server.port" in the base tree.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"os"
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"
)

// Overlay resolves configuration values across several sources.
type Overlay struct {
	flags     *flashflags.FlagSet
	base      *Configuration
	appName   string
	overrides map[string]interface{}
}

// NewOverlay creates an overlay for the given application. The base
// configuration may be nil; sources above it still work.
func NewOverlay(appName string, base *Configuration) *Overlay {
	return &Overlay{
		flags:     flashflags.New(appName),
		base:      base,
		appName:   appName,
		overrides: make(map[string]interface{}),
	}
}

// SetDescription sets the application description for help text.
func (o *Overlay) SetDescription(description string) *Overlay {
	o.flags.SetDescription(description)
	return o
}

// SetVersion sets the application version for help text.
func (o *Overlay) SetVersion(version string) *Overlay {
	o.flags.SetVersion(version)
	return o
}

// StringFlag registers a string flag.
func (o *Overlay) StringFlag(name, defaultValue, usage string) *Overlay {
	o.flags.String(name, defaultValue, usage)
	return o
}

// IntFlag registers an integer flag.
func (o *Overlay) IntFlag(name string, defaultValue int, usage string) *Overlay {
	o.flags.Int(name, defaultValue, usage)
	return o
}

// BoolFlag registers a boolean flag.
func (o *Overlay) BoolFlag(name string, defaultValue bool, usage string) *Overlay {
	o.flags.Bool(name, defaultValue, usage)
	return o
}

// DurationFlag registers a duration flag.
func (o *Overlay) DurationFlag(name string, defaultValue time.Duration, usage string) *Overlay {
	o.flags.Duration(name, defaultValue, usage)
	return o
}

// Float64Flag registers a float64 flag.
func (o *Overlay) Float64Flag(name string, defaultValue float64, usage string) *Overlay {
	o.flags.Float64(name, defaultValue, usage)
	return o
}

// StringSliceFlag registers a string slice flag.
func (o *Overlay) StringSliceFlag(name string, defaultValue []string, usage string) *Overlay {
	o.flags.StringSlice(name, defaultValue, usage)
	return o
}

// Parse parses command line arguments. Environment variables with the
// uppercased application name as prefix feed unset flags.
func (o *Overlay) Parse(args []string) error {
	o.flags.SetEnvPrefix(strings.ToUpper(o.appName))
	return o.flags.Parse(args)
}

// ParseArgs parses os.Args[1:].
func (o *Overlay) ParseArgs() error {
	return o.Parse(os.Args[1:])
}

// Override sets a value with the highest precedence. The key is a flag
// name in dash form.
func (o *Overlay) Override(name string, value interface{}) {
	o.overrides[name] = value
}

// PrintUsage prints the flag help text.
func (o *Overlay) PrintUsage() {
	o.flags.PrintHelp()
}

// configKey maps a dash separated flag name to a dotted tree key.
func configKey(flagName string) string {
	return strings.ReplaceAll(flagName, "-", ".")
}

// flagChanged reports whether the named flag was set by the user.
func (o *Overlay) flagChanged(name string) bool {
	changed := false
	o.flags.VisitAll(func(f *flashflags.Flag) {
		if f.Name() == name && f.Changed() {
			changed = true
		}
	})
	return changed
}

// baseValue reads the key under the flag's dotted form from the base
// configuration.
func (o *Overlay) baseValue(name string) (interface{}, bool) {
	if o.base == nil {
		return nil, false
	}
	v, err := o.base.Get(configKey(name))
	if err != nil {
		return nil, false
	}
	return v, true
}

// GetString resolves a string value across all sources.
func (o *Overlay) GetString(name string) string {
	if v, ok := o.overrides[name]; ok {
		return ToString(v)
	}
	if o.flagChanged(name) {
		return o.flags.GetString(name)
	}
	if v, ok := o.baseValue(name); ok {
		return ToString(v)
	}
	return o.flags.GetString(name)
}

// GetInt resolves an integer value across all sources.
func (o *Overlay) GetInt(name string) int {
	if v, ok := o.overrides[name]; ok {
		if n, err := ToInt(v); err == nil {
			return n
		}
	}
	if o.flagChanged(name) {
		return o.flags.GetInt(name)
	}
	if v, ok := o.baseValue(name); ok {
		if n, err := ToInt(v); err == nil {
			return n
		}
	}
	return o.flags.GetInt(name)
}

// GetBool resolves a boolean value across all sources.
func (o *Overlay) GetBool(name string) bool {
	if v, ok := o.overrides[name]; ok {
		if b, err := ToBool(v); err == nil {
			return b
		}
	}
	if o.flagChanged(name) {
		return o.flags.GetBool(name)
	}
	if v, ok := o.baseValue(name); ok {
		if b, err := ToBool(v); err == nil {
			return b
		}
	}
	return o.flags.GetBool(name)
}

// GetDuration resolves a duration value across all sources.
func (o *Overlay) GetDuration(name string) time.Duration {
	if v, ok := o.overrides[name]; ok {
		if d, err := ToDuration(v); err == nil {
			return d
		}
	}
	if o.flagChanged(name) {
		return o.flags.GetDuration(name)
	}
	if v, ok := o.baseValue(name); ok {
		if d, err := ToDuration(v); err == nil {
			return d
		}
	}
	return o.flags.GetDuration(name)
}

// GetFloat64 resolves a float value across all sources.
func (o *Overlay) GetFloat64(name string) float64 {
	if v, ok := o.overrides[name]; ok {
		if f, err := ToFloat64(v); err == nil {
			return f
		}
	}
	if o.flagChanged(name) {
		return o.flags.GetFloat64(name)
	}
	if v, ok := o.baseValue(name); ok {
		if f, err := ToFloat64(v); err == nil {
			return f
		}
	}
	return o.flags.GetFloat64(name)
}

// GetStringSlice resolves a string list across all sources.
func (o *Overlay) GetStringSlice(name string) []string {
	if v, ok := o.overrides[name]; ok {
		if s, err := ToStringSlice(v, nil); err == nil {
			return s
		}
	}
	if o.flagChanged(name) {
		return o.flags.GetStringSlice(name)
	}
	if o.base != nil {
		if s, err := o.base.GetStringSlice(configKey(name)); err == nil {
			return s
		}
	}
	return o.flags.GetStringSlice(name)
}

// BoundKeys returns the dotted configuration key for every registered
// flag.
func (o *Overlay) BoundKeys() map[string]string {
	result := make(map[string]string)
	o.flags.VisitAll(func(f *flashflags.Flag) {
		result[f.Name()] = configKey(f.Name())
	})
	return result
}
