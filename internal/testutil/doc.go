// Package testutil provides testing utilities for the storefront: a
// controllable clock, request builders and small assertion helpers.
package testutil
