// Package storage lays out the archive on disk.
//
// Posts are bucketed by the month they were written:
//
//	archive/2015/03/봄_나들이_1234567.html
//	archive/2015/03/봄_나들이_0.jpg
//	archive/2015/03/봄_나들이_1234567.json
//
// Titles are sanitized so only ASCII letters, digits and Hangul survive. All
// writes go through a temporary file and a rename, so a killed run never
// leaves a half-written post behind.
package storage
