// Copyright (c) 2023 BVK Chaitanya

package dispatch

import "time"

type Options struct {
	// ThrottleBackoff is the time to wait before re-issuing a request that was
	// rejected by the exchange for exceeding the rate limits.
	ThrottleBackoff time.Duration
}

func (v *Options) setDefaults() {
	if v.ThrottleBackoff == 0 {
		v.ThrottleBackoff = 2 * time.Second
	}
}
