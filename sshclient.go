// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// sessionKey identifies one cached SSH connection. Two Remote calls that
// agree on all five fields share the same underlying *ssh.Client,
// avoiding a fresh handshake per command (spec §4.4 invariant 1).
type sessionKey struct {
	user    string
	host    string
	key     string
	port    int
	timeout time.Duration
}

// sessionCacheMu guards the ssh_client map stored under optSSHClient in
// each Config Scope frame: acquireSession copies the map before adding
// to it, so an inner frame's sessions never appear in an outer frame's
// map, but dial-or-reuse must still be atomic against concurrent Remote
// calls sharing one frame.
var sessionCacheMu sync.Mutex

// defaultKeyFiles is the probing order used when no explicit key
// filename is configured (spec §4.4.1).
var defaultKeyFiles = []string{
	"id_rsa",
	"id_dsa",
	"identity",
	"id_ecdsa",
}

func discoverKeyFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	for _, name := range defaultKeyFiles {
		candidate := filepath.Join(home, ".ssh", name)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	return "", &UsageError{Message: "no SSH private key found and none configured"}
}

func loadSigner(keyFile string) (ssh.Signer, error) {
	bytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(bytes)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// acquireSession returns a session for key. When a Config Scope is
// active, the session is looked up in (and, on a miss, dialed into) that
// scope's ssh_client map, with disconnection registered as a cleanup on
// the current frame the first time it is dialed — it is never the
// caller's to close (owned=false). When no scope is active, a fresh
// session is dialed and handed to the caller uncached: owned=true means
// the caller is responsible for closing it once done (spec §4.4.1).
func acquireSession(key sessionKey) (client *ssh.Client, owned bool, err error) {
	if ScopeDepth() == 0 {
		client, err = dialSession(key)
		return client, true, err
	}

	sessionCacheMu.Lock()
	defer sessionCacheMu.Unlock()

	env := CurrentEnv()
	cache, _ := env.GetOr(optSSHClient, map[sessionKey]*ssh.Client{}).(map[sessionKey]*ssh.Client)
	if cache == nil {
		cache = map[sessionKey]*ssh.Client{}
	}
	if existing, ok := cache[key]; ok {
		return existing, false, nil
	}

	client, err = dialSession(key)
	if err != nil {
		return nil, false, err
	}

	// Settings copies a frame's mapping shallowly, so the map found here
	// may be shared with outer frames; write a copy into this frame only.
	updated := make(map[sessionKey]*ssh.Client, len(cache)+1)
	for k, v := range cache {
		updated[k] = v
	}
	updated[key] = client
	_ = env.Set(optSSHClient, updated)
	AddCleanup(func() {
		client.Close() //nolint:errcheck // best-effort cleanup; error non-critical
	})
	return client, false, nil
}

func dialSession(key sessionKey) (*ssh.Client, error) {
	keyFile, err := discoverKeyFile(key.key)
	if err != nil {
		return nil, &NetworkError{Wrapped: err}
	}
	signer, err := loadSigner(keyFile)
	if err != nil {
		return nil, &NetworkError{Wrapped: err}
	}

	config := &ssh.ClientConfig{
		User:            key.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // host verification is the caller's responsibility via known_hosts config, not modeled here
		Timeout:         key.timeout,
	}

	addr := net.JoinHostPort(key.host, portString(key.port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, &NetworkError{Wrapped: err}
	}
	return client, nil
}

func portString(port int) string {
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%d", port)
}

// evictSession drops a cached session from the active scope's ssh_client
// map, used when a transport error suggests the connection is no longer
// usable. It is a no-op when no scope is active, since an unscoped
// session was never cached in the first place.
func evictSession(key sessionKey) {
	if ScopeDepth() == 0 {
		return
	}

	sessionCacheMu.Lock()
	defer sessionCacheMu.Unlock()

	env := CurrentEnv()
	cache, _ := env.GetOr(optSSHClient, map[sessionKey]*ssh.Client{}).(map[sessionKey]*ssh.Client)
	client, ok := cache[key]
	if !ok {
		return
	}
	delete(cache, key)
	_ = env.Set(optSSHClient, cache)
	client.Close() //nolint:errcheck // best-effort cleanup; error non-critical
}

// networkErrorPrefix classifies a transport error the way the
// original's custom_error_prefixes table does, giving callers a
// human-readable hint about what kind of connection failure occurred.
func networkErrorPrefix(err error) string {
	if err == nil {
		return ""
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return "Timed out trying to connect. "
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "Low level socket error connecting to host. "
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "Low level socket error connecting to host. "
	}
	return ""
}
