package interceptor

// Layered is implemented by every proxy layer and every capability adapter embedding *Proxy.
// The real object does not implement it.
type Layered interface {
	Unwrap() any
}

// Peel walks the layers of obj and returns the first value that is not Layered, the real object.
func Peel(obj any) any {
	for {
		l, ok := obj.(Layered)
		if !ok {
			return obj
		}

		obj = l.Unwrap()
	}
}

// PeelTo walks the layers of obj, starting with obj itself, and returns the first value of type T.
func PeelTo[T any](obj any) (T, bool) {
	for {
		if t, ok := obj.(T); ok {
			return t, true
		}

		l, ok := obj.(Layered)
		if !ok {
			var zero T
			return zero, false
		}

		obj = l.Unwrap()
	}
}

// Depth returns the number of layers around the real object.
func Depth(obj any) int {
	n := 0
	for {
		l, ok := obj.(Layered)
		if !ok {
			return n
		}

		obj = l.Unwrap()
		n++
	}
}
