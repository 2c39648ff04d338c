package inspector

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/systems"
)

// Widget types for rendering fields.
type Widget int

const (
	WidgetAuto Widget = iota
	WidgetLabel
	WidgetBar
	WidgetAngle
	WidgetGround
	WidgetState
	WidgetPayload
	WidgetSkip
)

var widgetNames = map[string]Widget{
	"label":   WidgetLabel,
	"bar":     WidgetBar,
	"angle":   WidgetAngle,
	"ground":  WidgetGround,
	"state":   WidgetState,
	"payload": WidgetPayload,
	"skip":    WidgetSkip,
}

// Hints are the rendering options carried in an inspect tag.
type Hints struct {
	Format string
	Max    float64
}

// Field represents a component field with rendering hints.
type Field struct {
	Name   string
	Value  any
	Widget Widget
	Hints  Hints
}

// ParseTag parses an inspect struct tag.
// Format: `inspect:"widget[,fmt:verb][,max:n]"`
// Examples:
//
//	`inspect:"bar,max:255"`
//	`inspect:"label,fmt:%.1fs"`
//	`inspect:"payload"`
func ParseTag(tag string) (Widget, Hints) {
	h := Hints{Max: 1}
	if tag == "" {
		return WidgetAuto, h
	}
	name, rest, _ := strings.Cut(tag, ",")
	w := widgetNames[strings.TrimSpace(name)]
	for _, opt := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(opt), ":")
		if !ok {
			continue
		}
		switch k {
		case "fmt":
			h.Format = v
		case "max":
			if m, err := strconv.ParseFloat(v, 64); err == nil && m > 0 {
				h.Max = m
			}
		}
	}
	return w, h
}

// slot is the cached layout of one inspectable field.
type slot struct {
	index  []int
	name   string
	widget Widget
	hints  Hints
}

var (
	vecType  = reflect.TypeOf(r3.Vec{})
	quatType = reflect.TypeOf(quat.Number{})
	layouts  sync.Map // reflect.Type -> []slot
)

// layoutOf walks t once and caches the result; the inspector asks for the
// same few component types every frame.
func layoutOf(t reflect.Type) []slot {
	if l, ok := layouts.Load(t); ok {
		return l.([]slot)
	}
	var out []slot
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("inspect")
		w, h := ParseTag(tag)
		if w == WidgetSkip {
			continue
		}
		name := sf.Name
		if sf.Anonymous && tag == "" {
			// An embedded vector stands for the whole component.
			if sf.Type == vecType {
				name = t.Name()
			} else if sf.Type.Kind() == reflect.Struct {
				for _, inner := range layoutOf(sf.Type) {
					inner.index = append([]int{i}, inner.index...)
					out = append(out, inner)
				}
				continue
			}
		}
		if w == WidgetAuto {
			w = autoDetectWidget(sf.Type)
		}
		out = append(out, slot{index: []int{i}, name: name, widget: w, hints: h})
	}
	l, _ := layouts.LoadOrStore(t, out)
	return l.([]slot)
}

// ExtractFields returns the inspectable fields of a component. Embedded
// structs are flattened, and a payload field is decoded against the state
// field beside it.
func ExtractFields(component any) []Field {
	v := reflect.ValueOf(component)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	layout := layoutOf(v.Type())
	fields := make([]Field, len(layout))
	state := int32(-1)
	for i, s := range layout {
		fields[i] = Field{
			Name:   s.name,
			Value:  v.FieldByIndex(s.index).Interface(),
			Widget: s.widget,
			Hints:  s.hints,
		}
		if s.widget == WidgetState {
			state, _ = fields[i].Value.(int32)
		}
	}
	for i := range fields {
		if fields[i].Widget == WidgetPayload {
			fields[i].Value = describePayload(state, fields[i].Value)
			fields[i].Widget = WidgetLabel
		}
	}
	return fields
}

// describePayload renders the per-state scratch word by its meaning.
func describePayload(state int32, raw any) any {
	extra, ok := raw.(int32)
	if !ok || state < 0 {
		return raw
	}
	d, err := systems.DecodeState(state, extra)
	if err != nil {
		return fmt.Sprintf("%d (invalid)", extra)
	}
	s := fmt.Sprintf("%+v", d)
	if s == "{}" {
		return "-"
	}
	return strings.Trim(s, "{}")
}

func autoDetectWidget(t reflect.Type) Widget {
	switch t {
	case quatType:
		return WidgetAngle
	case vecType:
		return WidgetGround
	}
	return WidgetLabel
}

// FormatValue formats a field value as a string.
func FormatValue(value any, format string) string {
	if format != "" {
		return fmt.Sprintf(format, value)
	}
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case r3.Vec:
		return fmt.Sprintf("%.1f, %.1f", v.X, v.Z)
	default:
		return fmt.Sprint(value)
	}
}

// FloatValue extracts a number for bar widgets.
func FloatValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case uint32:
		return float64(v), true
	default:
		return 0, false
	}
}

// Heading returns a compass heading in radians, clockwise from north.
func Heading(value any) (float64, bool) {
	q, ok := value.(quat.Number)
	if !ok {
		return 0, false
	}
	return systems.Yaw(q), true
}
