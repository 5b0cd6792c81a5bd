// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package emojidetect finds emoji code points in text.
//
// A code point matches when it has the Emoji_Presentation or the
// Extended_Pictographic property. This covers the common emoji grapheme
// classes rather than a fixed allow-list: a flag yields two regional
// indicator matches and a skin-toned emoji yields the base plus the
// modifier.
//
// FindAll returns the matches in order. Contains only answers whether there
// is one.
package emojidetect

import (
	"unicode"
)

// IsEmoji reports whether r is an emoji presentation or extended
// pictographic code point.
func IsEmoji(r rune) bool {
	if r < 0xa9 {
		return false
	}
	return unicode.In(r, ExtendedPictographic, EmojiPresentation)
}

// FindAll scans text left to right and returns every matching code point,
// in order, as its own string. It returns nil when nothing matches.
func FindAll(text string) []string {
	var matches []string
	for _, r := range text {
		if IsEmoji(r) {
			matches = append(matches, string(r))
		}
	}
	return matches
}

// Contains reports whether text has at least one emoji code point. It stops
// at the first match and allocates nothing.
func Contains(text string) bool {
	for _, r := range text {
		if IsEmoji(r) {
			return true
		}
	}
	return false
}
