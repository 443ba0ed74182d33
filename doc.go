// Package account implements the account lifecycle for user-facing HTTP
// APIs: registration, email activation, authentication, password reset, and
// profile management.
//
// Lifecycle orchestration:
//   - AccountManager exposes one method per use case. Every operation takes an
//     explicit *Session so no request depends on ambient process-wide auth
//     state. Operations return structured errors from goliatone/go-errors and
//     the HTTP layer maps them once onto status codes.
//   - Activation and password reset share a two-part "id!secret" opaque token
//     (EncodeToken / DecodeToken). The secret lives on the user row and is a
//     single live value per namespace, superseded on reissue and cleared on
//     successful use.
//   - Activation mode is a small state machine driven by settings: "auto"
//     activates on registration, "user" requires a mailed confirmation link,
//     "none" skips activation entirely.
//
// Observers:
//   - Observer is a synchronous extension point invoked in registration order.
//     BeforeRegister and BeforeAuthenticate receive mutable inputs; the After
//     hooks are best-effort notification points. Embed NoopObserver when you
//     only care about a subset.
package account
