/*
Package resilience provides a circuit breaker for calls to outside services.

The preview service only talks to one outside party, the package CDN, when
probing whether a project's dependencies resolve. The breaker keeps a flaky
CDN from turning every probe into a slow timeout.

# Usage

	breaker := resilience.New("cdn", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	resp, err := resilience.Execute(breaker, func() (*resty.Response, error) {
		return req.Head(url)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

Settings.Now makes the transitions testable without sleeping.
*/
package resilience
