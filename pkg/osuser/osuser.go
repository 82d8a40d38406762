package osuser

import (
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/rangeworks/drover/pkg/types"
)

// Token is an opaque OS logon handle. It must be closed before being
// discarded.
type Token interface {
	Close() error
}

// Profile is an opaque loaded-user-profile handle. It must be closed
// before its token is closed.
type Profile interface {
	Close() error
}

// LogonAPI is the OS boundary this package consumes: log a user on,
// load their profile, and release both. Injectable so session tests never
// touch real OS accounts.
type LogonAPI interface {
	Logon(username, password string) (Token, error)
	LoadProfile(t Token) (Profile, error)
}

// SessionUser is an impersonation context: a logged-on OS user with a
// loaded profile, ready to host job processes.
type SessionUser struct {
	Identity types.SessionUser

	token   Token
	profile Profile
}

// Open logs the user on and loads their profile as one scoped
// acquisition. The returned release function closes the profile and then
// the token; callers defer it immediately so both handles are released on
// every exit path. If profile loading fails the token is closed before
// the error returns.
func Open(api LogonAPI, identity types.SessionUser) (*SessionUser, func(), error) {
	token, err := api.Logon(identity.User, identity.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log on as %s: %w", identity.User, err)
	}

	profile, err := api.LoadProfile(token)
	if err != nil {
		_ = token.Close()
		return nil, nil, fmt.Errorf("failed to load profile for %s: %w", identity.User, err)
	}

	su := &SessionUser{Identity: identity, token: token, profile: profile}
	release := func() {
		_ = su.profile.Close()
		_ = su.token.Close()
	}
	return su, release, nil
}

// posixToken carries the resolved uid/gid of a verified local account.
type posixToken struct {
	uid uint32
	gid uint32
}

func (posixToken) Close() error { return nil }

// posixProfile is a no-op handle; POSIX systems have no profile-hive
// equivalent to load, but the release contract is kept identical.
type posixProfile struct{}

func (posixProfile) Close() error { return nil }

// PosixAPI implements LogonAPI for POSIX hosts by resolving the local
// account. Password verification is delegated to the job subprocess
// mechanism; the agent runs as root and impersonates by uid/gid.
type PosixAPI struct{}

func (PosixAPI) Logon(username, password string) (Token, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("unparsable uid %q for %s: %w", u.Uid, username, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("unparsable gid %q for %s: %w", u.Gid, username, err)
	}
	return posixToken{uid: uint32(uid), gid: uint32(gid)}, nil
}

func (PosixAPI) LoadProfile(t Token) (Profile, error) {
	if _, ok := t.(posixToken); !ok {
		return nil, fmt.Errorf("foreign token type %T", t)
	}
	return posixProfile{}, nil
}

// ConfigureCommand makes cmd execute under the session user's identity.
// Only meaningful for tokens produced by PosixAPI; other tokens leave the
// command untouched so tests can run processes as themselves.
func (su *SessionUser) ConfigureCommand(cmd *exec.Cmd) {
	tok, ok := su.token.(posixToken)
	if !ok {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Credential = &syscall.Credential{Uid: tok.uid, Gid: tok.gid}
}
