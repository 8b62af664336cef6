// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import "errors"

// ErrPostersDisabled is reported when poster lookups are switched off.
var ErrPostersDisabled = errors.New("poster lookups are disabled")
