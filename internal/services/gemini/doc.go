// Package gemini is the model gateway: every call filmroom makes to the
// generative model service goes through a Gateway.
//
// The Gateway wraps a Backend (the genai SDK in production, fakes in tests)
// with three resilience layers:
//
//   - Transient retry. Errors carrying HTTP 408, 429, or 5xx, network timeouts,
//     and anything tagged services.ErrTransient are retried with exponential
//     backoff (base, multiplier, cap) plus uniform jitter. Other failures
//     propagate on the first attempt.
//   - Parse retry. GenerateJSON re-issues the request with a strict-JSON
//     instruction appended when the reply does not decode, up to a small cap,
//     then fails with services.ErrMalformedResponse.
//   - Readiness polling. Uploaded files start SUBMITTED and are polled at a
//     fixed interval until ACTIVE, FAILED, or the wall-clock ceiling (TIMEOUT).
//     Only ACTIVE files may be referenced by generation calls.
//
// Every blocking step honours the caller's context, so a run-level deadline
// bounds the whole gateway. Sleeps, jitter, and the clock are injectable for
// tests.
package gemini
