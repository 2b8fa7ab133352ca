package auth

import "errors"

// ErrLoginFailed means the credentialed login flow ran but the success
// criteria were not met.
var ErrLoginFailed = errors.New("auth: login failed")
