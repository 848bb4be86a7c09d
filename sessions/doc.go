// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package sessions stores browser logins in the session table and tracks them
// with the "sessionid" cookie. A "remember me" login gets a persistent cookie;
// otherwise the cookie is dropped when the browser closes.
package sessions
