package plugin

import (
	"errors"
	"fmt"
	goplugin "plugin"
	"reflect"
)

// ErrNoAgent reports that a shared object does not export a usable agent.
// Files failing this way are skipped rather than treated as load errors.
var ErrNoAgent = errors.New("plugin does not export an agent")

// Loader resolves plugin files into agent factories.
type Loader interface {
	Load(path string) (Factory, error)
}

// GoPluginLoader uses the Go standard library plugin mechanism to open shared objects.
type GoPluginLoader struct{}

// Load opens the shared object and resolves its exported Agent symbol.
func (GoPluginLoader) Load(path string) (Factory, error) {
	if path == "" {
		return nil, errors.New("plugin path cannot be empty")
	}
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	symbol, err := so.Lookup(Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAgent, err)
	}
	return FactoryFromSymbol(symbol)
}

// FactoryFromSymbol turns an exported symbol into a Factory. Constructor
// functions and factory variables are called on demand. Pointers to interface
// or pointer variables are followed to the value they hold; any other
// non-function value is used as the agent instance itself.
func FactoryFromSymbol(symbol any) (Factory, error) {
	switch s := symbol.(type) {
	case nil:
		return nil, ErrNoAgent
	case Factory:
		if s == nil {
			return nil, ErrNoAgent
		}
		return s, nil
	case *Factory:
		if s == nil || *s == nil {
			return nil, ErrNoAgent
		}
		return *s, nil
	case func() (any, error):
		return s, nil
	case *func() (any, error):
		if s == nil || *s == nil {
			return nil, ErrNoAgent
		}
		return *s, nil
	case func() any:
		return func() (any, error) { return s(), nil }, nil
	case *func() any:
		if s == nil || *s == nil {
			return nil, ErrNoAgent
		}
		fn := *s
		return func() (any, error) { return fn(), nil }, nil
	}

	v := reflect.ValueOf(symbol)
	if v.Kind() == reflect.Func {
		return nil, fmt.Errorf("%w: unsupported constructor signature %T", ErrNoAgent, symbol)
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, ErrNoAgent
		}
		// Lookup returns the address of an exported variable, so
		// `var Agent any = &impl{}` arrives as *any and `var Agent = &impl{}` as **impl.
		switch elem := v.Elem(); elem.Kind() {
		case reflect.Interface, reflect.Pointer:
			if elem.IsNil() {
				return nil, ErrNoAgent
			}
			return FactoryFromSymbol(elem.Interface())
		}
	}
	return func() (any, error) { return symbol, nil }, nil
}
