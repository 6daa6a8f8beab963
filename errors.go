package mailverify

import "errors"

// ErrInvalidConfig is returned by Verify and VerifyMany when the Verifier
// was built from a configuration that cannot work. It is never used for a
// verification outcome.
var ErrInvalidConfig = errors.New("mailverify: invalid configuration")
