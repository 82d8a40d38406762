/*
Package backoff computes full-jitter exponential retry delays for Drover's
control-plane client.

The delay for attempt n is sampled uniformly from [0, base^(n-1)], capped at
a maximum. Sampling the full range (rather than jittering around the
exponential value) desynchronizes a fleet of agents retrying against the
same throttled endpoint.

# Overflow regime

base^(n-1) overflows float64 long before a long-lived agent stops retrying.
Once n is past the point where the exponential term exceeds the square of
the cap, the power is provably above the cap and is never computed; the
delay is instead sampled from [0.8*max, max), preserving jitter near the
cap.

# Usage

	policy := backoff.Full()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := call(); err == nil {
			break
		}
		time.Sleep(policy.Delay(attempt))
	}

Both regimes are deterministic under injected random sources, which is how
the package is unit tested.
*/
package backoff
