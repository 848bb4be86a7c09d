// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Sources

Each value is taken from the first source that sets it:

 1. CLI flag
 2. Environment variable (a .env file is loaded first when present)
 3. YAML file given by -c or CONFIG_FILE
 4. Default

# CLI Flags

	-p                  Server port
	-d                  Database URL
	-t                  Database type (sqlite or postgres)
	-secret             Activation token key
	-base-url           Public base URL
	-allowed-hosts      Hosts accepted for links without a base URL
	-trusted-proxies    Proxy IPs or CIDRs trusted for X-Forwarded-For
	-email-backend      console, smtp or memory
	-smtp-host          SMTP host
	-smtp-port          SMTP port
	-from               Default From address
	-activation-timeout Activation link lifetime
	-session-age        Session lifetime
	-log-format         text or json
	-log-level          debug, info, warn or error
	-c                  YAML config file
	-env-file           dotenv file (default .env)

# YAML File

	port: 8080
	database_type: postgres
	database_url: postgres://localhost/taskflow
	secret_key: change-me
	base_url: https://todo.example.com
	allowed_hosts: [todo.example.com]
	trusted_proxies: [10.0.0.0/8]
	email:
	  backend: smtp
	  host: smtp.example.com
	  port: 587
	  from: noreply@example.com
	activation_timeout: 72h
	session_age: 336h

# Validation

ParseFlags returns an error when:

  - no database URL is provided
  - SECRET_KEY is missing
  - the database type or email backend is unknown
  - the smtp backend has no host
  - a port or duration does not parse
  - a trusted proxy is not an IP or CIDR
*/
package cliparse
