// Package httputil holds the JSON envelope helpers every API handler writes through,
// so error bodies and content types stay uniform across endpoints.
package httputil
