// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides credential and token utilities.

# Passwords

Passwords are stored as bcrypt hashes:

	hash, err := auth.HashPassword(password)
	err = auth.CheckPassword(hash, password) // ErrInvalidPassword on mismatch

# API Tokens

Each account owns at most one 40 hex character API key:

	key, err := auth.GenerateAPIKey()

Clients send it as "Authorization: Token <key>"; ParseAuthorization extracts
the key and ignores other schemes.

# Session Keys

	key, err := auth.GenerateSessionKey() // 256-bit, URL-safe base64

# Activation Tokens

Activation links carry the user ID and a time-boxed token:

	tokens := auth.NewActivationTokens(cfg.SecretKey, cfg.ActivationTimeout)
	uid := auth.EncodeUID(user.ID)
	token := tokens.MakeToken(user.ID, user.IsActive)

	ok := tokens.CheckToken(user.ID, user.IsActive, token)

A token is "<base36 seconds since 2001-01-01>-<32 hex chars>", where the hex
part is taken from an HMAC-SHA256 over the user ID, the active flag and the
timestamp. Flipping the active flag invalidates every outstanding token.
*/
package auth
