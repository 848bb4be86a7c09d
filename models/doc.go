// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - TodoRequest: title, description, completed (nil when absent)
  - RegisterRequest: username, password, email
  - LoginRequest: username, password
  - SendEmailRequest: to (string or list), subject, message
  - ResendActivationRequest: email

# Response Types

Types for JSON responses:

  - TokenResponse: token, user_id, username
  - UsernameAvailability, EmailAvailability: value and available flag
  - SendEmailResponse: sent, recipients
  - StatusResponse: status
  - ErrorResponse: error, message

# Domain Types

  - User: account; PasswordHash never serializes
  - Todo: owned item with owner and owner_username as read-only fields
  - Token: API key bound to one user

# Constants

Database dialects:

	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"

Email backends:

	EmailBackendConsole = "console"
	EmailBackendSMTP    = "smtp"
	EmailBackendMemory  = "memory"

MaxTitleLength caps todo titles at 200 characters.
*/
package models
