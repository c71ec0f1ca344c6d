// Package http is the public API of tether's resilient HTTP client.
//
// A Client sends requests through a connection pool that is created on first
// use and shared by every request of that client. The pool caps concurrent
// connections globally and per host, caches DNS answers for a TTL and can
// skip TLS verification. Failed attempts are retried with exponential
// backoff; a received response ends the loop whatever its status.
//
// Do never returns an error. Every outcome, including failures, is reported
// in a Result:
//
//	client := http.NewClient(
//	    http.WithBaseURL("https://api.example.com"),
//	    http.WithTimeout(10*time.Second),
//	    http.WithMaxRetries(2),
//	)
//	defer client.Close()
//
//	req := http.NewRequest("GET", "/users",
//	    http.WithQueryParam("limit", "10"),
//	    http.WithShape(http.ShapeJSON),
//	)
//
//	result := client.Do(ctx, req)
//	if !result.Success() {
//	    log.Printf("%s after %d attempts: %s", result.Kind(), result.Attempts(), result.Error())
//	}
//
// Use scopes the pool to a function and closes it on every exit path:
//
//	err := client.Use(ctx, func(ctx context.Context, c *http.Client) error {
//	    for _, req := range requests {
//	        results = append(results, c.Do(ctx, req))
//	    }
//	    return nil
//	})
//
// The retry loop waits 2^n backoff units before attempt n+2. With the
// default unit of one second and two retries, a request that keeps timing
// out makes three attempts separated by one and two seconds.
package http
