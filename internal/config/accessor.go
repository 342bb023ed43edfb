package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// keys maps every settable dot path to its field type. It is derived from the
// json tags so optional fields are addressable even while unset.
var keys = collectKeys(reflect.TypeOf(Config{}), "")

func collectKeys(t reflect.Type, prefix string) map[string]reflect.Type {
	out := make(map[string]reflect.Type)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			for k, v := range collectKeys(f.Type, path) {
				out[k] = v
			}
			continue
		}
		out[path] = f.Type
	}
	return out
}

// Keys returns every settable path in sorted order.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unknownKey(path string) error {
	for k := range keys {
		if strings.HasPrefix(k, path+".") {
			return fmt.Errorf("%s is a section, not a value", path)
		}
	}
	return fmt.Errorf("unknown config key: %s", path)
}

// toMap renders cfg in its on-disk JSON shape.
func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, k := range strings.Split(path, ".") {
		section, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = section[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetByPath returns the value at a dot path such as "analysis.jpegQuality".
// Optional fields that are unset read as their zero value.
func GetByPath(cfg *Config, path string) (any, error) {
	typ, ok := keys[path]
	if !ok {
		return nil, unknownKey(path)
	}
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	if v, ok := lookup(m, path); ok {
		return v, nil
	}
	return reflect.Zero(typ).Interface(), nil
}

// SetByPath sets the value at a dot path. String values are converted to the
// field's type; the config is then re-decoded as a whole so a bad value
// leaves cfg untouched.
func SetByPath(cfg *Config, path string, value any) error {
	typ, ok := keys[path]
	if !ok {
		return unknownKey(path)
	}
	v, err := convert(value, typ)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	m, err := toMap(cfg)
	if err != nil {
		return err
	}
	parts := strings.Split(path, ".")
	parent := m
	for _, k := range parts[:len(parts)-1] {
		child, ok := parent[k].(map[string]any)
		if !ok {
			child = make(map[string]any)
			parent[k] = child
		}
		parent = child
	}
	parent[parts[len(parts)-1]] = v

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var next Config
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*cfg = next
	return nil
}

// convert turns a command-line string into the JSON shape of a field of type t.
// Lists are comma separated.
func convert(value any, t reflect.Type) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	switch t.Kind() {
	case reflect.String:
		return s, nil
	case reflect.Bool:
		return strconv.ParseBool(s)
	case reflect.Int:
		return strconv.Atoi(s)
	case reflect.Float64:
		return strconv.ParseFloat(s, 64)
	case reflect.Slice:
		items := []string{}
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	}
	return nil, fmt.Errorf("unsupported field type %s", t)
}

// Sanitize returns a copy of the config with credentials masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Telegram.AllowFrom = append(FlexStringList(nil), cfg.Telegram.AllowFrom...)
	if out.Provider.APIKey != "" {
		out.Provider.APIKey = maskString(out.Provider.APIKey)
	}
	if out.Telegram.Token != "" {
		out.Telegram.Token = maskString(out.Telegram.Token)
	}
	return &out
}

// maskString keeps the first and last four characters.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns every settable path with its current value.
func ListPaths(cfg *Config) map[string]any {
	m, err := toMap(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any, len(keys))
	for path, typ := range keys {
		if v, ok := lookup(m, path); ok {
			out[path] = v
		} else {
			out[path] = reflect.Zero(typ).Interface()
		}
	}
	return out
}
