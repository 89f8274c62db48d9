package config

import (
	"reflect"
	"sync"
	"time"
)

var envPaths = sync.OnceValue(func() map[string]string {
	out := make(map[string]string)
	collectEnvPaths(reflect.TypeOf(Config{}), "", out)
	return out
})

// EnvPaths maps each environment variable name, without EnvPrefix, to the
// dotted config path it sets. It is derived from the env struct tags.
func EnvPaths() map[string]string {
	return envPaths()
}

func collectEnvPaths(t reflect.Type, prefix string, out map[string]string) {
	for i := range t.NumField() {
		field := t.Field(i)
		key := field.Tag.Get("koanf")
		if !field.IsExported() || key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if name := field.Tag.Get("env"); name != "" && name != "-" {
			out[name] = key
		}
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeFor[time.Time]() {
			collectEnvPaths(field.Type, key, out)
		}
	}
}
