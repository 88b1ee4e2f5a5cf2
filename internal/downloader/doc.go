// Package downloader archives crawled posts one at a time.
//
// For every identifier that is not yet in the completion set it opens the
// single-post page, parses it under a retry.Policy, downloads the embedded
// images, writes the rendered document and only then records the identifier
// as complete. Posts that turn out to be deleted are recorded as complete
// too, so they are never retried.
package downloader
