package server

import (
	"encoding/json"
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()
var futureType = reflect.TypeOf((*FutureResult)(nil))

// methodEntry is one exported method of a registered implementation that
// matches the RPC calling convention: N typed arguments in, (result, error)
// or (*FutureResult, error) out.
type methodEntry struct {
	method   reflect.Method
	argTypes []reflect.Type // excludes the receiver
	argDescs []string       // reflect.Type.String() per argument, the wire descriptor
	isAsync  bool
}

// service wraps one registered implementation and its resolvable methods.
type service struct {
	rcvr    reflect.Value
	methods map[string][]*methodEntry // method name -> overload candidates
}

// newService scans rcvr's exported methods for ones matching the calling
// convention. rcvr must be a non-nil pointer to a struct.
func newService(rcvr any) (*service, error) {
	if rcvr == nil {
		return nil, fmt.Errorf("jgrpc: service implementation must not be nil")
	}
	typ := reflect.TypeOf(rcvr)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("jgrpc: service implementation must be a pointer to a struct, got %s", typ.Kind())
	}

	svc := &service{
		rcvr:    reflect.ValueOf(rcvr),
		methods: make(map[string][]*methodEntry),
	}

	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		entry, ok := toMethodEntry(m)
		if !ok {
			continue
		}
		svc.methods[m.Name] = append(svc.methods[m.Name], entry)
	}
	return svc, nil
}

func toMethodEntry(m reflect.Method) (*methodEntry, bool) {
	mt := m.Type // includes receiver as In(0)
	if mt.NumOut() != 2 || mt.Out(1) != errorType {
		return nil, false
	}

	numArgs := mt.NumIn() - 1
	argTypes := make([]reflect.Type, numArgs)
	argDescs := make([]string, numArgs)
	for i := 0; i < numArgs; i++ {
		argTypes[i] = mt.In(i + 1)
		argDescs[i] = argTypes[i].String()
	}

	return &methodEntry{
		method:   m,
		argTypes: argTypes,
		argDescs: argDescs,
		isAsync:  mt.Out(0) == futureType,
	}, true
}

// resolve finds the method named methodName whose argument descriptors
// exactly match argTypes, per spec.md §4.5's "(name, argument type
// descriptors) — exact match" rule.
func (s *service) resolve(methodName string, argTypes []string) (*methodEntry, bool) {
	for _, candidate := range s.methods[methodName] {
		if descsEqual(candidate.argDescs, argTypes) {
			return candidate, true
		}
	}
	return nil, false
}

func descsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// invoke calls entry with args coerced to its declared parameter types,
// returning the raw first return value (possibly a *FutureResult) and any
// error the implementation itself returned.
func (s *service) invoke(entry *methodEntry, args []any) (any, error) {
	if len(args) != len(entry.argTypes) {
		return nil, fmt.Errorf("jgrpc: %s expects %d arguments, got %d", entry.method.Name, len(entry.argTypes), len(args))
	}

	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, s.rcvr)
	for i, arg := range args {
		v, err := coerce(arg, entry.argTypes[i])
		if err != nil {
			return nil, fmt.Errorf("jgrpc: argument %d of %s: %w", i, entry.method.Name, err)
		}
		in = append(in, v)
	}

	out := entry.method.Func.Call(in)
	result := out[0].Interface()
	errVal := out[1].Interface()
	if errVal != nil {
		return result, errVal.(error)
	}
	return result, nil
}

// coerce adapts a generically-decoded argument value (as produced by a
// codec that has no compile-time knowledge of the target method's
// parameter types — every codec here decodes Args into interface{}/map
// shapes) into target, by round-tripping it through JSON. This keeps the
// codec layer fully generic while still letting dispatch invoke concretely
// typed Go methods via reflection.
func coerce(value any, target reflect.Type) (reflect.Value, error) {
	if value != nil && reflect.TypeOf(value).AssignableTo(target) {
		return reflect.ValueOf(value), nil
	}

	out := reflect.New(target)
	raw, err := json.Marshal(value)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := json.Unmarshal(raw, out.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return out.Elem(), nil
}

// typeDescriptor renders a concrete Go value's type in the wire form that
// resolve matches message.Request.ArgTypes against (reflect.Type.String()).
func typeDescriptor(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
