// Package checkpoint persists the two identifier sets that make a run
// resumable: the identifiers discovered by the crawler and the identifiers
// the downloader has finished.
//
// Each set is a plain text file:
//
//	#cyarchive-set v1
//	1234567
//	1234568
//
// Additions are appended and fsynced one line at a time, so a killed process
// loses at most the identifier it was writing. Files without the header, as
// written by older tools, load fine and are rewritten with it.
package checkpoint
