package flags

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Def defines a command-line flag bound to a viper configuration key.
type (
	flagType interface {
		string | int | uint64 | float64 | bool | time.Duration
	}

	Def[T flagType] struct {
		Name        string
		ViperKey    string
		Default     T
		Description string
	}
)

// Declare declares every flag on fs and binds it to its viper key.
func Declare[T flagType](v *viper.Viper, fs *pflag.FlagSet, defs []Def[T]) error {
	for _, def := range defs {
		if err := declare(v, fs, def); err != nil {
			return err
		}
	}
	return nil
}

// MustDeclare is Declare for package init blocks.
func MustDeclare[T flagType](v *viper.Viper, fs *pflag.FlagSet, defs []Def[T]) {
	if err := Declare(v, fs, defs); err != nil {
		panic(err)
	}
}

// declare picks the pflag constructor from the type parameter.
func declare[T flagType](v *viper.Viper, fs *pflag.FlagSet, def Def[T]) error {
	switch value := any(def.Default).(type) {
	case string:
		fs.String(def.Name, value, def.Description)
	case int:
		fs.Int(def.Name, value, def.Description)
	case uint64:
		fs.Uint64(def.Name, value, def.Description)
	case float64:
		fs.Float64(def.Name, value, def.Description)
	case bool:
		fs.Bool(def.Name, value, def.Description)
	case time.Duration:
		fs.Duration(def.Name, value, def.Description)
	}

	if def.ViperKey == "" {
		return nil
	}
	if err := v.BindPFlag(def.ViperKey, fs.Lookup(def.Name)); err != nil {
		return fmt.Errorf("failed to bind flag '%s' to '%s': %w", def.Name, def.ViperKey, err)
	}
	return nil
}
