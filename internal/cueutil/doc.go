// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates documents against embedded CUE schemas.
//
// Both the user configuration file (CUE) and the pakt.json manifest (JSON,
// which CUE accepts as input) go through the same flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed manifest_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest",
//	    cueutil.WithFilename("pakt.json"))
//
// Errors carry the JSON path of the offending value, e.g.
// "pakt.json: require.acme/widgets: conflicting values".
package cueutil
