// Package session owns the authenticated HTTP client and its
// persistent cookie jar.
//
// The credential is an exported browser cookie file; no interactive
// login is performed. All collection requests go through Session.Do,
// which attaches jar cookies automatically and converts 401/403
// responses and login-page redirects into ErrNotAuthenticated:
//
//	store := session.NewFileStore("cookies.json")
//	sess, err := session.New(store, logger)
//	resp, err := sess.Do(req)
//	if errors.Is(err, session.ErrNotAuthenticated) {
//	    // fatal: credential expired, abort the run
//	}
package session
