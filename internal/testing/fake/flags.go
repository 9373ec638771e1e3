package fake

import "time"

// FlagSet is a map-backed set of flags for the tests of the commands. A value
// of the wrong type reads as the zero value.
//
// - implements cli.Flags
type FlagSet map[string]interface{}

// String implements cli.Flags.
func (fset FlagSet) String(name string) string {
	v, _ := fset[name].(string)
	return v
}

// StringSlice implements cli.Flags.
func (fset FlagSet) StringSlice(name string) []string {
	v, _ := fset[name].([]string)
	return v
}

// Duration implements cli.Flags.
func (fset FlagSet) Duration(name string) time.Duration {
	v, _ := fset[name].(time.Duration)
	return v
}

// Path implements cli.Flags.
func (fset FlagSet) Path(name string) string {
	return fset.String(name)
}

// Int implements cli.Flags.
func (fset FlagSet) Int(name string) int {
	v, _ := fset[name].(int)
	return v
}

// Uint64 implements cli.Flags.
func (fset FlagSet) Uint64(name string) uint64 {
	v, _ := fset[name].(uint64)
	return v
}

// Float64 implements cli.Flags.
func (fset FlagSet) Float64(name string) float64 {
	v, _ := fset[name].(float64)
	return v
}

// Bool implements cli.Flags.
func (fset FlagSet) Bool(name string) bool {
	v, _ := fset[name].(bool)
	return v
}
