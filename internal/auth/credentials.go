// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth verifies admin credentials and keeps admin sessions.
package auth

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// Verifier checks a user/password pair against admin.credentials
// (user=/password= lines) and then admin.htpasswd (bcrypt entries). Both
// files are re-read on every attempt so edits apply without a restart.
type Verifier struct {
	credentialsPath string
	htpasswdPath    string
	logger          zerolog.Logger
}

// NewVerifier returns a Verifier for the two credential files. Either path
// may be empty.
func NewVerifier(credentialsPath, htpasswdPath string) *Verifier {
	return &Verifier{
		credentialsPath: credentialsPath,
		htpasswdPath:    htpasswdPath,
		logger:          xglog.WithComponent("auth"),
	}
}

// Verify reports whether user/password is a valid admin login.
func (v *Verifier) Verify(user, password string) bool {
	if user == "" || password == "" {
		return false
	}
	if u, p, ok := v.plainCredentials(); ok {
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(u)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(p)) == 1
		if userOK && passOK {
			return true
		}
	}
	return v.checkHtpasswd(user, password)
}

// Configured reports whether any credential source exists.
func (v *Verifier) Configured() bool {
	for _, p := range []string{v.credentialsPath, v.htpasswdPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

func (v *Verifier) plainCredentials() (user, password string, ok bool) {
	data, ok := v.read(v.credentialsPath)
	if !ok {
		return "", "", false
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, found := strings.CutPrefix(line, "user="); found {
			user = strings.TrimSpace(rest)
		} else if rest, found := strings.CutPrefix(line, "password="); found {
			password = strings.TrimSpace(rest)
		}
	}
	return user, password, user != "" && password != ""
}

func (v *Verifier) checkHtpasswd(user, password string) bool {
	data, ok := v.read(v.htpasswdPath)
	if !ok {
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		name, hash, found := strings.Cut(strings.TrimRight(sc.Text(), "\r"), ":")
		if !found || name != user {
			continue
		}
		if !strings.HasPrefix(hash, "$2") {
			v.logger.Warn().
				Str(xglog.FieldEvent, "auth.unsupported_hash").
				Str(xglog.FieldUser, user).
				Msg("htpasswd entry is not a bcrypt hash")
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	return false
}

func (v *Verifier) read(path string) ([]byte, bool) {
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			v.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("credential file unreadable")
		}
		return nil, false
	}
	return data, true
}
