package config

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeHook extends viper's default hooks with ListHook so string
// values from env vars and dotenv files decode into []string fields.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		ListHook(),
	)
}

// ListHook decodes a string into []string. It accepts "a,b,c", "a b c",
// and bracketed literals such as "['a', 'b']" or "(a b)".
func ListHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		return ParseList(data.(string)), nil
	}
}

// ParseList splits a loosely formatted list literal into trimmed items.
func ParseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "[(")
	raw = strings.TrimRight(raw, "])")
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
