package codec

import (
	"reflect"

	"github.com/udisondev/pso2go/internal/variant"
)

// Context carries the per-call state every field codec sees.
type Context struct {
	// Variant selects conditional fields.
	Variant variant.Variant
	// Xor and Sub are the magic constants of the enclosing struct.
	Xor uint32
	Sub uint32
	// Verbatim disables NUL truncation and terminator insertion for strings.
	// Used to verify that a decoded frame re-encodes to identical bytes.
	Verbatim bool
}

// Value is a typed codec bound to a destination.
type Value interface {
	Read(r *Reader, ctx Context) error
	Write(w *Writer, ctx Context) error
	// Reset stores the type's default, used when a conditional field is absent.
	Reset()
}

// Schema is implemented by structs described as an ordered list of fields.
type Schema interface {
	Fields() []Field
}

// Obfuscated is implemented by structs that carry their own magic constants.
type Obfuscated interface {
	Magic(v variant.Variant) (xor, sub uint32)
}

// Field describes one struct field: its name, its codec and its directives.
type Field struct {
	Name  string
	Value Value

	seek      int
	seekAfter int
	only      variant.Set
	not       variant.Set
	xor       uint32
	sub       uint32
	hasMagic  bool
}

// F declares a field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Seek skips n bytes before the field (zero-filled on write).
func (f Field) Seek(n int) Field {
	f.seek = n
	return f
}

// SeekAfter skips n bytes after the field (zero-filled on write).
func (f Field) SeekAfter(n int) Field {
	f.seekAfter = n
	return f
}

// OnlyOn makes the field present only for the given variants.
func (f Field) OnlyOn(s variant.Set) Field {
	f.only = s
	return f
}

// NotOn makes the field absent for the given variants.
func (f Field) NotOn(s variant.Set) Field {
	f.not = s
	return f
}

// Magic overrides the magic constants for this field (and its children).
func (f Field) Magic(xor, sub uint32) Field {
	f.xor, f.sub, f.hasMagic = xor, sub, true
	return f
}

// Present reports whether the field is on the wire for v.
func (f Field) Present(v variant.Variant) bool {
	if f.only != 0 && !f.only.Has(v) {
		return false
	}
	return !f.not.Has(v)
}

func (f Field) context(ctx Context) Context {
	if f.hasMagic {
		ctx.Xor, ctx.Sub = f.xor, f.sub
	}
	return ctx
}

// DecodeFields reads fields in order. Errors are tagged with structName and the field name.
func DecodeFields(r *Reader, ctx Context, structName string, fields []Field) error {
	for _, f := range fields {
		if !f.Present(ctx.Variant) {
			f.Value.Reset()
			continue
		}
		r.Advance(f.seek)
		if err := f.Value.Read(r, f.context(ctx)); err != nil {
			return &FieldError{Struct: structName, Field: f.Name, Err: err}
		}
		r.Advance(f.seekAfter)
	}
	return nil
}

// EncodeFields writes fields in order.
func EncodeFields(w *Writer, ctx Context, structName string, fields []Field) error {
	for _, f := range fields {
		if !f.Present(ctx.Variant) {
			continue
		}
		w.Zero(f.seek)
		if err := f.Value.Write(w, f.context(ctx)); err != nil {
			return &FieldError{Struct: structName, Field: f.Name, Err: err}
		}
		w.Zero(f.seekAfter)
	}
	return nil
}

// Unmarshal decodes s from r, applying s's own magic constants when it declares any.
func Unmarshal(r *Reader, ctx Context, s Schema) error {
	if o, ok := s.(Obfuscated); ok {
		ctx.Xor, ctx.Sub = o.Magic(ctx.Variant)
	}
	return nameError(DecodeFields(r, ctx, "", s.Fields()), s)
}

// Marshal encodes s to w, applying s's own magic constants when it declares any.
func Marshal(w *Writer, ctx Context, s Schema) error {
	if o, ok := s.(Obfuscated); ok {
		ctx.Xor, ctx.Sub = o.Magic(ctx.Variant)
	}
	return nameError(EncodeFields(w, ctx, "", s.Fields()), s)
}

// nameError fills in the struct name of a top-level FieldError.
func nameError(err error, s Schema) error {
	if fe, ok := err.(*FieldError); ok && fe.Struct == "" {
		fe.Struct = TypeName(s)
	}
	return err
}

// TypeName returns the bare type name of v (pointer indirections removed).
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
