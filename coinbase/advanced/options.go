// Copyright (c) 2023 BVK Chaitanya

package advanced

import "time"

var RestHostname = "api.coinbase.com"

type Options struct {
	// Hostname for the REST service endpoint.
	RestHostname string

	// Scheme for the REST service endpoint. Defaults to https.
	Scheme string

	// Timeout to use for the HTTP requests.
	HttpClientTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.RestHostname == "" {
		v.RestHostname = RestHostname
	}
	if v.Scheme == "" {
		v.Scheme = "https"
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 5 * time.Second
	}
}
