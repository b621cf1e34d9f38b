package util

import (
	"io"
	"reflect"
)

// CloseWithErr closes closer and logs a failure as a warning. Nil closers,
// including typed nil pointers, are ignored.
func CloseWithErr(closer io.Closer, name string) {
	if closer == nil {
		return
	}
	if v := reflect.ValueOf(closer); v.Kind() == reflect.Ptr && v.IsNil() {
		return
	}
	if err := closer.Close(); err != nil {
		Warnf("close %s: %v", name, err)
	}
}
