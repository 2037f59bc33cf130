package firm

import (
	"context"
)

// Clone returns a deep copy of the graph rooted at v by passing it through
// the intermediate tree, without rendering bytes. Shared references and
// cycles are preserved in the copy. Only registered and built-in types are
// copied; properties without setters keep their zero values.
//
// Finalizers run on the copy exactly as they would after a load.
func Clone[T any](ctx context.Context, v T) (T, error) {
	var zero T
	root, _, err := toNode(ctx, v)
	if err != nil {
		return zero, err
	}
	out, _, err := fromNode(ctx, root, allowedNames(nil))
	if err != nil {
		return zero, err
	}
	return As[T](out)
}
