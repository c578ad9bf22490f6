// Copyright 2026 The Halocache Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import "github.com/mapforge/halocache/internal/log"

// Logger is the sink Parse and Encode send structural diagnostics to.
type Logger = log.Logger

// Map is a fully decoded cache file: its identity (name, build string,
// kind) and the tag graph. Bitmap, sound, and model tags carry their
// externalized asset bytes on the Tag itself, in AssetData.
type Map struct {
	Name  string
	Build string
	Kind  Kind

	Tags TagArray

	// Options is the configuration this Map was parsed (or will be
	// encoded) with. It is kept on the Map so repeated Encode calls
	// without re-specifying options reuse the original ones.
	Options Options
}

// Options configures how Parse reads a cache file and how Encode
// writes one back out. The zero value is the configuration a freshly
// dumped single-player retail map needs.
type Options struct {
	// Logger receives structural diagnostics (skipped orphan sbsps,
	// externalized asset sizes, and the like). A nil Logger disables
	// logging.
	Logger Logger

	// StrictSBSP, when true, makes Parse fail with ErrOrphanedSBSP
	// instead of merely logging a warning when an sbsp tag has no
	// entry in the scenario's structure-bsp table.
	StrictSBSP bool
}
