// Package formatter renders a handler's structured payload into the plain
// text carried in ResponseEnvelope.Success.Text when a request asked for
// responseFormat=text. No example repo in this system's lineage pulls in a
// table-rendering library for this kind of output; they reach for the
// standard library's text/tabwriter, so this package does the same.
package formatter

import (
	"bytes"
	"fmt"
	"reflect"
	"text/tabwriter"
)

// Render turns structured into a tabular text rendering when it's a slice
// of structs (the common shape for list-style handlers), or a field-by-field
// dump for a single struct. Anything else returns ok=false so the caller
// falls back to the handler's one-line summary.
func Render(structured interface{}) (text string, ok bool) {
	if structured == nil {
		return "", false
	}
	v := reflect.ValueOf(structured)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return renderSlice(v)
	case reflect.Struct:
		return renderStruct(v)
	default:
		return "", false
	}
}

func renderSlice(v reflect.Value) (string, bool) {
	if v.Len() == 0 {
		return "(no results)", true
	}
	elemKind := v.Index(0).Kind()
	for elemKind == reflect.Ptr {
		elemKind = v.Index(0).Elem().Kind()
	}
	if elemKind != reflect.Struct {
		var buf bytes.Buffer
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintf(&buf, "%v\n", v.Index(i).Interface())
		}
		return buf.String(), true
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	first := indirect(v.Index(0))
	t := first.Type()
	names := exportedFieldNames(t)
	fmt.Fprintln(w, joinTabbed(names))

	for i := 0; i < v.Len(); i++ {
		row := indirect(v.Index(i))
		values := make([]string, len(names))
		for j, name := range names {
			values[j] = fmt.Sprintf("%v", row.FieldByName(name).Interface())
		}
		fmt.Fprintln(w, joinTabbed(values))
	}
	w.Flush()
	return buf.String(), true
}

func renderStruct(v reflect.Value) (string, bool) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	t := v.Type()
	for _, name := range exportedFieldNames(t) {
		fmt.Fprintf(w, "%s:\t%v\n", name, v.FieldByName(name).Interface())
	}
	w.Flush()
	return buf.String(), true
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

func exportedFieldNames(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath == "" { // exported
			names = append(names, f.Name)
		}
	}
	return names
}

func joinTabbed(fields []string) string {
	var buf bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte('\t')
		}
		buf.WriteString(f)
	}
	return buf.String()
}
