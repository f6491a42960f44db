package atcmd

// retry calls fn until it reports done, fails, or has been called
// retries+1 times. It returns the number of calls made.
func retry(retries int, fn func(attempt int) (done bool, err error)) (int, error) {
	if retries < 0 {
		retries = 0
	}
	for attempt := 0; ; attempt++ {
		done, err := fn(attempt)
		if err != nil || done || attempt >= retries {
			return attempt + 1, err
		}
	}
}
