// Package scraper wires the archive together.
//
// A Scraper is built from a config.Config and owns every long-lived resource
// of a run: the browser session, the identifier and completion sets and the
// archive directory. Its phases map one to one onto the CLI commands:
//
//	s, err := scraper.New(cfg, scraper.Deps{})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if _, err := s.Login(ctx, creds); err != nil {
//	    return err
//	}
//	if _, err := s.Crawl(ctx); err != nil {
//	    return err
//	}
//	summary, err := s.Download(ctx)
//
// Both phases are resumable. Crawl only ever adds identifiers, Download
// skips every identifier already in the completion set, and Verify checks
// the completion set against the metadata sidecars on disk without starting
// a browser.
package scraper
