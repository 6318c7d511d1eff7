// Package validation checks decoded request bodies before they reach
// storage. Rules are struct tags evaluated by go-playground/validator; the
// first failing rule becomes the client-facing message.
package validation
