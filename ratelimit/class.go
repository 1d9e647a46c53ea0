// Copyright (c) 2023 BVK Chaitanya

package ratelimit

import "fmt"

// Class identifies a group of exchange endpoints that share a rate limit.
type Class int

const (
	Public Class = iota
	Private
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case Private:
		return "private"
	}
	return fmt.Sprintf("class-%d", int(c))
}
