package ast

import "errors"

// ErrTooLarge is returned by Builder.Finish when the tree overran the
// largest offset representable in a skip slot or a negative skip was
// patched (a builder-usage bug), spec §4.3's "script too large" condition.
var ErrTooLarge = errors.New("ast: script too large for skip-addressable tree")
