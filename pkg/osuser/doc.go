/*
Package osuser models the OS impersonation boundary: logging on as the
job user, loading their profile, and guaranteed release of both handles.

The contract is scoped acquisition. Open returns the session user
together with a release function; callers defer it, so the profile and
the logon token are closed on every exit path, including failures during
session setup. A profile handle never outlives its token and a token is
never discarded unclosed.

The LogonAPI interface keeps the real OS out of tests. The shipped
PosixAPI resolves local accounts by uid/gid; on POSIX hosts the agent
runs privileged and impersonates via process credentials rather than a
password-verified logon, so the "token" is the resolved identity itself.
*/
package osuser
