package serializer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding for command results.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// SupportedFormats returns every format accepted by the writers.
func SupportedFormats() []string {
	return []string{string(FormatJSON), string(FormatYAML), string(FormatTable)}
}

// IsUnknown reports whether f is not a supported format.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTable:
		return false
	default:
		return true
	}
}

// FormatFromPath infers the format from a file extension. Unrecognized
// extensions resolve to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".txt", ".table":
		return FormatTable
	default:
		return FormatYAML
	}
}

// Serializer writes a value to some destination.
type Serializer interface {
	Serialize(ctx context.Context, data any) error
}

// Closer is implemented by serializers that own a resource.
type Closer interface {
	Close() error
}

// Writer serializes values to an io.Writer in a single format.
type Writer struct {
	format Format
	out    io.Writer
	closer io.Closer

	closeOnce sync.Once
	closeErr  error
}

// NewWriter returns a Writer for format writing to out.
// Unknown formats fall back to JSON; a nil out means stdout.
func NewWriter(format Format, out io.Writer) *Writer {
	if format.IsUnknown() {
		format = FormatJSON
	}
	if out == nil {
		out = os.Stdout
	}
	return &Writer{format: format, out: out}
}

// NewStdoutWriter returns a Writer for format writing to stdout.
func NewStdoutWriter(format Format) *Writer {
	return NewWriter(format, os.Stdout)
}

// NewFileWriterOrStdout returns a Serializer for path. An empty path or "-"
// writes to stdout, a cm://namespace/name URI writes to a ConfigMap, and any
// other value creates the file.
func NewFileWriterOrStdout(format Format, path string) (Serializer, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == StdoutURI {
		return NewStdoutWriter(format), nil
	}

	if strings.HasPrefix(path, ConfigMapURIScheme) {
		namespace, name, err := ParseConfigMapURI(path)
		if err != nil {
			return nil, err
		}
		return NewConfigMapWriter(namespace, name, format), nil
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	w := NewWriter(format, f)
	w.closer = f
	return w, nil
}

// Serialize encodes data in the writer's format.
func (w *Writer) Serialize(ctx context.Context, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := Marshal(w.format, data)
	if err != nil {
		return err
	}
	if _, err := w.out.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any. It is safe to call more than once.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		if w.closer != nil {
			w.closeErr = w.closer.Close()
		}
	})
	return w.closeErr
}

// Marshal encodes data in format.
func Marshal(format Format, data any) ([]byte, error) {
	switch format {
	case FormatYAML:
		b, err := yaml.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize to yaml: %w", err)
		}
		return b, nil
	case FormatTable:
		return marshalTable(data)
	default:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to serialize to json: %w", err)
		}
		return append(b, '\n'), nil
	}
}

// marshalTable flattens data into FIELD/VALUE rows.
func marshalTable(data any) ([]byte, error) {
	rows := make(map[string]string)
	flatten("", reflect.ValueOf(data), rows)

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	if len(keys) == 0 {
		fmt.Fprintln(tw, "<empty>\t")
	}
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, rows[k])
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render table: %w", err)
	}
	return []byte(sb.String()), nil
}

func flatten(prefix string, v reflect.Value, rows map[string]string) {
	if !v.IsValid() {
		if prefix != "" {
			rows[prefix] = "<nil>"
		}
		return
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			if prefix != "" {
				rows[prefix] = "<nil>"
			}
			return
		}
		flatten(prefix, v.Elem(), rows)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if f.Anonymous {
				flatten(prefix, v.Field(i), rows)
				continue
			}
			flatten(joinKey(prefix, f.Name), v.Field(i), rows)
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			rows[prefix] = fmt.Sprintf("<%d bytes>", v.Len())
			return
		}
		for i := 0; i < v.Len(); i++ {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), v.Index(i), rows)
		}
	case reflect.Map:
		for _, k := range v.MapKeys() {
			flatten(joinKey(prefix, fmt.Sprint(k.Interface())), v.MapIndex(k), rows)
		}
	default:
		rows[prefix] = fmt.Sprint(v.Interface())
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
