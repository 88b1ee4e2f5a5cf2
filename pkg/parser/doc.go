// Package parser extracts posts from single-post page markup using goquery.
//
// A post page carries a metadata line ("2015.03.10 14:22 PUBLIC"), a title
// heading and a content area split into sections. Image and text sections
// become blocks. Audio, font, link, media and file sections are recognised
// but dropped; this is a known limitation of the archive format, not a
// parse failure. Unrecognised sections are logged and skipped.
package parser
