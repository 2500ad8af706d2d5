// Package configx layers configuration sources with viper.
//
// Precedence, lowest first: the values already present in the destination
// struct (defaults), the optional config file (JSON or YAML), dotenv files and
// process environment variables carrying the configured prefix and finally
// command-line flags that were set explicitly. Callers that parse flags with
// the standard flag package apply them afterwards themselves.
package configx

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options selects the sources Load reads.
type Options struct {
	// File is an optional JSON/YAML config file; the format is taken from the extension.
	File string
	// EnvPrefix is prepended to every key when looking up environment variables,
	// e.g. "TRADESYNC" maps key "database_dsn" to TRADESYNC_DATABASE_DSN.
	EnvPrefix string
	// DotEnv lists dotenv files to load into the environment. Missing files are ignored.
	DotEnv []string
	// Flags, when set, overrides keys with the flags the user changed. A
	// flag named "server-url" binds key "server_url".
	Flags *pflag.FlagSet
}

// Load fills dst, a pointer to a flat struct whose fields carry mapstructure
// tags, from the sources in opts.
func Load(dst any, opts Options) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("configx: destination must be a pointer to struct, got %T", dst)
	}

	if err := loadDotEnv(opts.DotEnv); err != nil {
		return err
	}

	v := viper.New()
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Unmarshal only visits keys viper knows, so every tagged field is
	// registered with its current value as default.
	defaults := fieldDefaults(rv.Elem())
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := defaults[key]; !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return fmt.Errorf("configx: bind flags: %w", bindErr)
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("configx: read %s: %w", opts.File, err)
		}
	}

	if err := v.Unmarshal(dst); err != nil {
		return fmt.Errorf("configx: decode: %w", err)
	}
	return nil
}

func loadDotEnv(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("configx: dotenv %s: %w", f, err)
		}
	}
	return nil
}

func fieldDefaults(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if key == "" || key == "-" {
			continue
		}
		out[key] = v.Field(i).Interface()
	}
	return out
}
