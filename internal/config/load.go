package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a property file. The format follows the extension:
// .yaml and .yml are YAML documents whose nested mappings are flattened with
// dots, .cue files are evaluated with CUE and flattened the same way, and
// .env or .properties files hold key=value lines.
func LoadFile(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read property file: %w", err)
	}

	var props Properties
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		props, err = parseYAML(data)
	case ".cue":
		props, err = parseCUE(path, data)
	case ".env", ".properties":
		var m map[string]string
		m, err = godotenv.Parse(bytes.NewReader(data))
		props = Properties(m)
	default:
		return nil, fmt.Errorf("unsupported property file %s: unknown extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return props, nil
}

func parseYAML(data []byte) (Properties, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	props := Properties{}
	if doc == nil {
		return props, nil
	}
	if err := flatten(props, "", doc); err != nil {
		return nil, err
	}
	return props, nil
}

func parseCUE(path string, data []byte) (Properties, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, err
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := value.Decode(&doc); err != nil {
		return nil, err
	}
	props := Properties{}
	if err := flatten(props, "", doc); err != nil {
		return nil, err
	}
	return props, nil
}

// flatten writes v into props under prefix. Mappings nest with dots and
// sequences of scalars join with commas.
func flatten(props Properties, prefix string, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flatten(props, join(prefix, k), val[k]); err != nil {
				return err
			}
		}
	case map[any]any:
		for k, elem := range val {
			if err := flatten(props, join(prefix, fmt.Sprint(k)), elem); err != nil {
				return err
			}
		}
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			s, err := scalar(elem)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", prefix, i, err)
			}
			parts[i] = s
		}
		props[prefix] = strings.Join(parts, ",")
	default:
		if prefix == "" {
			return fmt.Errorf("top level must be a mapping, got %T", v)
		}
		s, err := scalar(val)
		if err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		props[prefix] = s
	}
	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func scalar(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int8, int16, int32, uint, uint8, uint16, uint32, float32:
		return fmt.Sprint(val), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

// Dump writes props to path as key=value lines, sorted by key.
func Dump(props Properties, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return godotenv.Write(props, path)
}
