// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package forms parses HTML form posts into structs and validates them with
// go-playground/validator. Failures come back as Errors keyed by the field's
// form (or json) name, with messages suitable for rendering next to inputs.
package forms
