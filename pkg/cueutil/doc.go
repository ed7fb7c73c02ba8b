// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing utilities.
//
// The package consolidates the 3-step CUE parsing pattern used by the mod
// descriptor and configuration loaders:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// JSON is a subset of CUE, so the same flow validates `.mod/mod.json` and
// `config.cue` alike.
//
// # Usage
//
//	//go:embed mod_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Descriptor](
//	    schemaBytes,
//	    data,
//	    "#Mod",
//	    cueutil.WithFilename("mod.json"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes CUE path for debugging
//	}
//	return result.Value, nil
package cueutil
