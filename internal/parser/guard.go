package parser

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrStackExhausted is returned when recursive descent would exceed the
// configured guard depth — the Go-native substitute for the original's
// coroutine-bounded C call stack (see SPEC_FULL.md's Open Question on the
// parser coroutine, and spec §6.1's c_stack_base/stack_size fields).
var ErrStackExhausted = fmt.Errorf("parser: expression nesting exceeds stack guard")

// stackGuardFrameBytes is a conservative per-recursion-level stack cost
// estimate (enter/leave's caller frame plus locals), used to translate the
// host's actual stack-size rlimit into a depth count.
const stackGuardFrameBytes = 512

// stackGuardFallback is the guard depth used when the process's stack
// rlimit can't be read or comes back unbounded/bogus — the same fixed
// guess this package used before WithStackGuard's default was derived
// from RLIMIT_STACK.
const stackGuardFallback = 5000

// defaultStackGuard bounds recursive descent depth for expressions and
// statements when the caller does not configure one explicitly via
// WithStackGuard. It is derived once, at package init, from the process's
// actual RLIMIT_STACK (spec §6.1's c_stack_base/stack_size default),
// rather than a fixed guess, so a host with a constrained stack rejects
// deep nesting sooner than one with a generous ulimit.
var defaultStackGuard = computeDefaultStackGuard()

func computeDefaultStackGuard() int {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rlimit); err != nil {
		return stackGuardFallback
	}
	if rlimit.Cur == 0 || rlimit.Cur == unix.RLIM_INFINITY {
		return stackGuardFallback
	}
	limit := int(rlimit.Cur / stackGuardFrameBytes)
	if limit <= 0 || limit > stackGuardFallback {
		return stackGuardFallback
	}
	return limit
}

// WithStackGuard returns a Parser option that caps recursive-descent
// depth at limit, returning ErrStackExhausted rather than letting a
// malicious or pathological script exhaust the host goroutine's stack.
// Go stacks grow dynamically, so this is a policy guard rather than a
// literal resource limit the way the original's stack-base comparison is.
func WithStackGuard(limit int) Option {
	return func(p *Parser) { p.stackGuard = limit }
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.stackGuard {
		return ErrStackExhausted
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }
