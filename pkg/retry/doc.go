// Package retry provides the two retry loops used by the archiver.
//
// Do is a bounded, error-type driven retry with exponential backoff. It
// wraps image fetches, where 5xx and network errors are worth another try
// and 404s are not.
//
// Policy.Run is the per-post loop. It retries structure mismatches with a
// linearly growing delay (10s, 20s, 30s by default). Once the delay passes
// the grace threshold, every failure first runs a deletion check so a removed
// post ends as Skipped instead of looping forever.
//
//	res := retry.DefaultPolicy().Run(ctx, fetchAndParse, isDeletedPage)
//	switch res.Outcome {
//	case retry.Succeeded, retry.Skipped:
//		// mark complete
//	}
package retry
